// Package validator holds the independent risk checks run against a consensus
// price: anomaly baseline, liquidity depth, contract security, TWAP and the
// on-chain feed cross-check. Each check is stateless and returns a fresh
// snapshot; nothing here persists between decisions.
package validator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/indicators"
)

// Sampler reads stored price observations for a token.
type Sampler interface {
	Samples(ctx context.Context, token domain.TokenRef, window time.Duration) ([]domain.PricePoint, error)
}

// AnomalyConfig tunes the baseline deviation check.
type AnomalyConfig struct {
	// MaxDeviationPct fails the check when the consensus price strays from the
	// rolling baseline by more than this percentage.
	MaxDeviationPct decimal.Decimal
	// MinSamples is the observation count below which the check passes
	// vacuously; a brand-new token has no baseline to violate.
	MinSamples int
	// Window bounds how far back observations are read.
	Window time.Duration
}

// AnomalyDetector compares consensus prices against the rolling baseline.
type AnomalyDetector struct {
	history Sampler
	cfg     AnomalyConfig
}

// NewAnomalyDetector creates the detector.
func NewAnomalyDetector(history Sampler, cfg AnomalyConfig) (*AnomalyDetector, error) {
	if history == nil {
		return nil, errors.New("history sampler is nil")
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 3
	}
	return &AnomalyDetector{history: history, cfg: cfg}, nil
}

// Check evaluates the consensus price against the stored baseline.
func (d *AnomalyDetector) Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.AnomalyResult, error) {
	points, err := d.history.Samples(ctx, token, d.cfg.Window)
	if err != nil {
		return domain.AnomalyResult{}, errors.Wrap(err, "read baseline samples")
	}

	result := domain.AnomalyResult{
		Token:      token,
		Samples:    len(points),
		ComputedAt: time.Now().UTC(),
	}

	if len(points) < d.cfg.MinSamples {
		result.Pass = true
		return result, nil
	}

	prices := make([]decimal.Decimal, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	baseline, err := indicators.Baseline(prices)
	if err != nil {
		return domain.AnomalyResult{}, errors.Wrap(err, "compute baseline")
	}
	if baseline.IsZero() {
		result.Pass = true
		return result, nil
	}

	deviation := consensus.Sub(baseline).Abs().Div(baseline).Mul(decimal.NewFromInt(100))
	result.Baseline = baseline
	result.DeviationPct = deviation
	result.Pass = deviation.LessThanOrEqual(d.cfg.MaxDeviationPct)
	return result, nil
}
