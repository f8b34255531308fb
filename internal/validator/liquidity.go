package validator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// PoolProvider lists the DEX pools holding a token plus its 24h trade volume.
type PoolProvider interface {
	Pools(ctx context.Context, token domain.TokenRef) ([]domain.PoolDepth, decimal.Decimal, error)
}

// LiquidityConfig tunes the exit-depth check.
type LiquidityConfig struct {
	// MinPoolUSD is the depth the best pool must hold for a sweep to exit
	// without moving the market.
	MinPoolUSD decimal.Decimal
	// MinVolume24hUSD is a soft signal only; thin volume never fails the
	// check by itself.
	MinVolume24hUSD decimal.Decimal
}

// LiquidityValidator verifies that at least one pool is deep enough to exit.
type LiquidityValidator struct {
	pools PoolProvider
	cfg   LiquidityConfig
}

// NewLiquidityValidator creates the validator.
func NewLiquidityValidator(pools PoolProvider, cfg LiquidityConfig) (*LiquidityValidator, error) {
	if pools == nil {
		return nil, errors.New("pool provider is nil")
	}
	return &LiquidityValidator{pools: pools, cfg: cfg}, nil
}

// Check snapshots pool depth and volume for the token.
func (v *LiquidityValidator) Check(ctx context.Context, token domain.TokenRef) (domain.LiquiditySnapshot, error) {
	pools, volume, err := v.pools.Pools(ctx, token)
	if err != nil {
		return domain.LiquiditySnapshot{}, errors.Wrap(err, "fetch pools")
	}

	best := decimal.Zero
	for _, p := range pools {
		if p.LiquidityUSD.GreaterThan(best) {
			best = p.LiquidityUSD
		}
	}

	return domain.LiquiditySnapshot{
		Token:       token,
		Pass:        best.GreaterThanOrEqual(v.cfg.MinPoolUSD),
		BestPoolUSD: best,
		Volume24h:   volume,
		VolumeOK:    volume.GreaterThanOrEqual(v.cfg.MinVolume24hUSD),
		Pools:       pools,
		ComputedAt:  time.Now().UTC(),
	}, nil
}
