package validator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// FeedSource reads an on-chain price feed for a token.
type FeedSource interface {
	FeedPrice(ctx context.Context, token domain.TokenRef) (decimal.Decimal, error)
}

// CrossCheckConfig tunes the on-chain feed comparison.
type CrossCheckConfig struct {
	MaxDeviationPct decimal.Decimal
}

// OracleChecker compares the off-chain consensus against an on-chain feed
// where one exists. Most tokens have no feed and pass with FeedFound false.
type OracleChecker struct {
	feeds FeedSource
	cfg   CrossCheckConfig
}

// NewOracleChecker creates the checker.
func NewOracleChecker(feeds FeedSource, cfg CrossCheckConfig) (*OracleChecker, error) {
	if feeds == nil {
		return nil, errors.New("feed source is nil")
	}
	return &OracleChecker{feeds: feeds, cfg: cfg}, nil
}

// Check compares consensus against the token's on-chain feed.
func (c *OracleChecker) Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.OracleCrossCheck, error) {
	result := domain.OracleCrossCheck{
		Token:      token,
		ComputedAt: time.Now().UTC(),
	}

	feedPrice, err := c.feeds.FeedPrice(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNoFeed) {
			result.Pass = true
			return result, nil
		}
		return domain.OracleCrossCheck{}, errors.Wrap(err, "read feed price")
	}

	result.FeedFound = true
	result.FeedPrice = feedPrice
	if feedPrice.IsZero() {
		result.Pass = true
		return result, nil
	}

	deviation := consensus.Sub(feedPrice).Abs().Div(feedPrice).Mul(decimal.NewFromInt(100))
	result.DeviationPct = deviation
	result.Pass = deviation.LessThanOrEqual(c.cfg.MaxDeviationPct)
	return result, nil
}
