package validator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/indicators"
)

// TWAPConfig tunes the time-weighted average comparison.
type TWAPConfig struct {
	MaxDeviationPct decimal.Decimal
	Window          time.Duration
}

// TWAPComparator flags consensus prices that diverge from the time-weighted
// average of stored observations, the signature of momentary manipulation.
type TWAPComparator struct {
	history Sampler
	cfg     TWAPConfig
}

// NewTWAPComparator creates the comparator.
func NewTWAPComparator(history Sampler, cfg TWAPConfig) (*TWAPComparator, error) {
	if history == nil {
		return nil, errors.New("history sampler is nil")
	}
	return &TWAPComparator{history: history, cfg: cfg}, nil
}

// Check compares the consensus price against the stored TWAP. Fewer than two
// observations pass vacuously; there is no average to diverge from.
func (c *TWAPComparator) Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.TWAPResult, error) {
	points, err := c.history.Samples(ctx, token, c.cfg.Window)
	if err != nil {
		return domain.TWAPResult{}, errors.Wrap(err, "read twap samples")
	}

	result := domain.TWAPResult{
		Token:        token,
		Observations: len(points),
		ComputedAt:   time.Now().UTC(),
	}

	if len(points) < 2 {
		result.Pass = true
		return result, nil
	}

	twap, err := indicators.TimeWeightedMean(points)
	if err != nil {
		// all observations at one instant; nothing to compare against
		result.Pass = true
		return result, nil
	}
	if twap.IsZero() {
		result.Pass = true
		return result, nil
	}

	deviation := consensus.Sub(twap).Abs().Div(twap).Mul(decimal.NewFromInt(100))
	result.TWAP = twap
	result.DeviationPct = deviation
	result.Pass = deviation.LessThanOrEqual(c.cfg.MaxDeviationPct)
	return result, nil
}
