// Package consensus reconciles the answers of every configured oracle source
// into one trusted price with a confidence score.
package consensus

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/oracle"
)

// Cache is the short-TTL consensus cache. A nil entry with nil error is a miss.
type Cache interface {
	Get(ctx context.Context, token domain.TokenRef) (*domain.ConsensusPrice, error)
	Put(ctx context.Context, cp domain.ConsensusPrice) error
}

// Recorder receives successful consensus prices for historical tracking.
type Recorder interface {
	Append(ctx context.Context, token domain.TokenRef, point domain.PricePoint) error
}

// Config bounds the fan-out and tunes outlier rejection.
type Config struct {
	// Budget caps the whole aggregation regardless of per-source timeouts.
	Budget time.Duration
	// SourceTimeout caps a single oracle call.
	SourceTimeout time.Duration
	// OutlierTolerancePct discards quotes deviating from the median by more
	// than this percentage.
	OutlierTolerancePct decimal.Decimal
	// SpreadTolerancePct halves confidence when the surviving quotes still
	// spread wider than this percentage.
	SpreadTolerancePct decimal.Decimal
	// MinQuorum is the minimum number of agreeing sources.
	MinQuorum int
}

// Aggregator fans out to all sources concurrently and computes the median
// consensus. Concurrent calls for the same token share one fan-out.
type Aggregator struct {
	sources []oracle.Source
	cache   Cache
	history Recorder
	cfg     Config
	logger  *zap.Logger

	flights singleflight.Group
}

// New creates the aggregator. Having no sources at all is a configuration
// error raised to the caller, never converted into a verdict.
func New(sources []oracle.Source, cache Cache, history Recorder, cfg Config, logger *zap.Logger) (*Aggregator, error) {
	if len(sources) == 0 {
		return nil, errors.New("no oracle sources configured")
	}
	if cfg.MinQuorum < 1 {
		return nil, errors.New("min quorum must be at least 1")
	}
	if cfg.Budget <= 0 || cfg.SourceTimeout <= 0 {
		return nil, errors.New("budget and source timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		sources: sources,
		cache:   cache,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

type sourceResult struct {
	name  string
	quote domain.PriceQuote
	err   error
}

// GetConsensus returns the trusted price for a token, computing it at most
// once per cache TTL and at most once across concurrent callers.
func (a *Aggregator) GetConsensus(ctx context.Context, token domain.TokenRef) (domain.ConsensusPrice, error) {
	if a.cache != nil {
		cached, err := a.cache.Get(ctx, token)
		if err != nil {
			a.logger.Warn("consensus cache read failed", zap.String("token", token.Key()), zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	// Completion is shared: the flight runs detached from any one caller's
	// cancellation, bounded only by the aggregation budget.
	ch := a.flights.DoChan(token.Key(), func() (any, error) {
		return a.compute(context.WithoutCancel(ctx), token)
	})

	select {
	case <-ctx.Done():
		return domain.ConsensusPrice{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.ConsensusPrice{}, res.Err
		}
		return res.Val.(domain.ConsensusPrice), nil
	}
}

func (a *Aggregator) compute(ctx context.Context, token domain.TokenRef) (domain.ConsensusPrice, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Budget)
	defer cancel()

	results := make(chan sourceResult, len(a.sources))
	for _, src := range a.sources {
		go func(src oracle.Source) {
			callCtx, callCancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer callCancel()

			quote, err := src.FetchPrice(callCtx, token)
			results <- sourceResult{name: src.Name(), quote: quote, err: err}
		}(src)
	}

	// Collect everything that arrives within the budget, late quotes included.
	quotes := make([]domain.PriceQuote, 0, len(a.sources))
	var failed []string
collect:
	for received := 0; received < len(a.sources); received++ {
		select {
		case res := <-results:
			if res.err != nil {
				a.logger.Debug("oracle source failed",
					zap.String("token", token.Key()),
					zap.String("source", res.name),
					zap.Error(res.err))
				failed = append(failed, res.name)
				continue
			}
			quotes = append(quotes, res.quote)
		case <-ctx.Done():
			break collect
		}
	}

	cp, err := a.reconcile(token, quotes, failed)
	if err != nil {
		return domain.ConsensusPrice{}, err
	}

	// side effects on success only
	if a.cache != nil {
		if err := a.cache.Put(ctx, cp); err != nil {
			a.logger.Warn("consensus cache write failed", zap.String("token", token.Key()), zap.Error(err))
		}
	}
	if a.history != nil {
		point := domain.PricePoint{Price: cp.Price, ObservedAt: cp.ComputedAt}
		if err := a.history.Append(ctx, token, point); err != nil {
			a.logger.Warn("history append failed", zap.String("token", token.Key()), zap.Error(err))
		}
	}

	return cp, nil
}

// reconcile computes the outlier-rejected median and its confidence.
func (a *Aggregator) reconcile(token domain.TokenRef, quotes []domain.PriceQuote, failed []string) (domain.ConsensusPrice, error) {
	if len(quotes) < a.cfg.MinQuorum {
		return domain.ConsensusPrice{}, errors.Wrapf(domain.ErrInsufficientData,
			"%d of %d sources answered, quorum is %d", len(quotes), len(a.sources), a.cfg.MinQuorum)
	}

	prices := make([]decimal.Decimal, len(quotes))
	for i, q := range quotes {
		prices[i] = q.Price
	}
	median := medianLow(prices)

	hundred := decimal.NewFromInt(100)
	agreeing := make([]domain.PriceQuote, 0, len(quotes))
	disagreeing := append([]string{}, failed...)
	for _, q := range quotes {
		deviation := q.Price.Sub(median).Abs().Div(median).Mul(hundred)
		if deviation.GreaterThan(a.cfg.OutlierTolerancePct) {
			a.logger.Info("rejecting outlier quote",
				zap.String("token", token.Key()),
				zap.String("source", q.Source),
				zap.String("price", q.Price.String()),
				zap.String("median", median.String()))
			disagreeing = append(disagreeing, q.Source)
			continue
		}
		agreeing = append(agreeing, q)
	}

	if len(agreeing) < a.cfg.MinQuorum {
		return domain.ConsensusPrice{}, errors.Wrapf(domain.ErrInsufficientData,
			"%d sources within tolerance, quorum is %d", len(agreeing), a.cfg.MinQuorum)
	}

	kept := make([]decimal.Decimal, len(agreeing))
	names := make([]string, len(agreeing))
	for i, q := range agreeing {
		kept[i] = q.Price
		names[i] = q.Source
	}
	final := medianLow(kept)

	confidence := float64(len(agreeing)) / float64(len(a.sources))
	if spreadPct(kept, final).GreaterThan(a.cfg.SpreadTolerancePct) {
		confidence /= 2
	}

	return domain.ConsensusPrice{
		Token:       token,
		Price:       final,
		Confidence:  confidence,
		Agreeing:    names,
		Disagreeing: disagreeing,
		ComputedAt:  time.Now().UTC(),
	}, nil
}

// medianLow returns the median price; for an even count it returns the lower
// middle candidate. Overvaluation is the attack surface, so ties break down.
func medianLow(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}

// spreadPct returns (max-min)/reference in percent.
func spreadPct(prices []decimal.Decimal, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() || len(prices) == 0 {
		return decimal.Zero
	}
	min, max := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(min) {
			min = p
		}
		if p.GreaterThan(max) {
			max = p
		}
	}
	return max.Sub(min).Div(reference).Mul(decimal.NewFromInt(100))
}
