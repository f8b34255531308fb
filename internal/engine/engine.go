// Package engine runs the sweep-safety pipeline: list check, price consensus,
// concurrent risk checks, then an ordered decision table. Its only output is
// a SweepDecision; it never moves funds.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/lists"
)

// ListSource reads list membership for a token.
type ListSource interface {
	Get(ctx context.Context, token domain.TokenRef) (*domain.ListEntry, error)
}

// ConsensusProvider returns the trusted price for a token.
type ConsensusProvider interface {
	GetConsensus(ctx context.Context, token domain.TokenRef) (domain.ConsensusPrice, error)
}

// AnomalyChecker compares a consensus price against the stored baseline.
type AnomalyChecker interface {
	Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.AnomalyResult, error)
}

// LiquidityChecker snapshots exit depth for a token.
type LiquidityChecker interface {
	Check(ctx context.Context, token domain.TokenRef) (domain.LiquiditySnapshot, error)
}

// SecurityChecker assesses contract security for a token.
type SecurityChecker interface {
	Check(ctx context.Context, token domain.TokenRef) (domain.SecurityAssessment, error)
}

// TWAPChecker compares a consensus price against the stored TWAP.
type TWAPChecker interface {
	Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.TWAPResult, error)
}

// FeedChecker compares a consensus price against an on-chain feed.
type FeedChecker interface {
	Check(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) (domain.OracleCrossCheck, error)
}

// Auditor persists every emitted decision.
type Auditor interface {
	Save(decision domain.SweepDecision) error
}

// Checkers bundles the risk-phase checks. All are required.
type Checkers struct {
	Anomaly   AnomalyChecker
	Liquidity LiquidityChecker
	Security  SecurityChecker
	TWAP      TWAPChecker
	Feed      FeedChecker
}

// Config holds the engine's own policy knobs.
type Config struct {
	// ValueCapUSD bounds auto-approval; the cap itself is inclusive.
	ValueCapUSD decimal.Decimal
	// MinConfidence is the consensus confidence floor for auto-approval,
	// inclusive. Anything below goes to review.
	MinConfidence float64
}

// Engine decides whether a token sweep may proceed autonomously.
type Engine struct {
	lists     ListSource
	consensus ConsensusProvider
	checks    Checkers
	audit     Auditor
	cfg       Config
	logger    *zap.Logger
}

// New creates the engine. The auditor is optional.
func New(listSource ListSource, consensus ConsensusProvider, checks Checkers, audit Auditor, cfg Config, logger *zap.Logger) (*Engine, error) {
	if listSource == nil {
		return nil, errors.New("list source is nil")
	}
	if consensus == nil {
		return nil, errors.New("consensus provider is nil")
	}
	if checks.Anomaly == nil || checks.Liquidity == nil || checks.Security == nil ||
		checks.TWAP == nil || checks.Feed == nil {
		return nil, errors.New("all risk checkers are required")
	}
	if !cfg.ValueCapUSD.IsPositive() {
		return nil, errors.New("value cap must be positive")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, errors.New("minimum confidence must be within [0, 1]")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		lists:     listSource,
		consensus: consensus,
		checks:    checks,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Decide is the sole public entry point. It is synchronous for the caller and
// concurrent inside; repeated calls within the consensus cache TTL reuse the
// cached price.
func (e *Engine) Decide(ctx context.Context, token domain.TokenRef, valueUSD decimal.Decimal) (domain.SweepDecision, error) {
	if err := token.Validate(); err != nil {
		return domain.SweepDecision{}, err
	}
	if valueUSD.IsNegative() {
		return domain.SweepDecision{}, errors.New("proposed sweep value must not be negative")
	}

	decision := domain.SweepDecision{
		ID:       uuid.NewString(),
		Token:    token,
		ValueUSD: valueUSD,
	}

	// list check comes first; a blacklist entry skips everything else
	entry, err := e.lists.Get(ctx, token)
	switch {
	case err == nil:
		decision.ListStatus = entry.Status
	case errors.Is(err, lists.ErrNotFound):
	default:
		return domain.SweepDecision{}, errors.Wrap(err, "read list entry")
	}

	if decision.ListStatus == domain.ListBlacklist {
		decision.Verdict = domain.VerdictReject
		decision.Reasons = []domain.Reason{{
			Check:  "list",
			Passed: false,
			Detail: blacklistDetail(entry),
		}}
		return e.finish(decision), nil
	}
	decision.Reasons = append(decision.Reasons, listReason(decision.ListStatus))

	// consensus phase: no trustworthy price means review, never a guess
	cp, err := e.consensus.GetConsensus(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			decision.Verdict = domain.VerdictReview
			decision.Reasons = append(decision.Reasons, domain.Reason{
				Check:  "consensus",
				Passed: false,
				Detail: err.Error(),
			})
			return e.finish(decision), nil
		}
		return domain.SweepDecision{}, errors.Wrap(err, "price consensus")
	}
	decision.Consensus = &cp
	decision.Reasons = append(decision.Reasons, domain.Reason{
		Check:  "consensus",
		Passed: true,
		Detail: fmt.Sprintf("price $%s from %d agreeing sources, confidence %.2f", cp.Price, len(cp.Agreeing), cp.Confidence),
	})

	in := verdictInput{
		ListStatus:    decision.ListStatus,
		Confidence:    cp.Confidence,
		MinConfidence: e.cfg.MinConfidence,
		ValueUSD:      valueUSD,
		ValueCapUSD:   e.cfg.ValueCapUSD,
	}

	// whitelisted tokens are exempt from per-token risk re-validation
	if decision.ListStatus != domain.ListWhitelist {
		riskReasons, critical, criticalDetail := e.riskPhase(ctx, token, cp.Price)
		decision.Reasons = append(decision.Reasons, riskReasons...)
		in.Critical = critical
		in.CriticalDetail = criticalDetail
		for _, r := range riskReasons {
			if !r.Passed {
				in.FailedChecks = append(in.FailedChecks, r.Check)
			}
		}
	}

	decision.Reasons = append(decision.Reasons, domain.Reason{
		Check:  "value_cap",
		Passed: valueUSD.LessThanOrEqual(e.cfg.ValueCapUSD),
		Detail: fmt.Sprintf("value $%s, cap $%s", valueUSD, e.cfg.ValueCapUSD),
	})

	verdict, ruleName, ruleDetail := decideVerdict(in)
	decision.Verdict = verdict
	if ruleName != "" {
		decision.Reasons = append(decision.Reasons, domain.Reason{
			Check:  ruleName,
			Passed: false,
			Detail: ruleDetail,
		})
	}
	return e.finish(decision), nil
}

// riskPhase runs the independent checks concurrently. A check that cannot run
// is folded in as failed; uncertainty never auto-approves.
func (e *Engine) riskPhase(ctx context.Context, token domain.TokenRef, consensus decimal.Decimal) ([]domain.Reason, bool, string) {
	var (
		wg        sync.WaitGroup
		anomaly   domain.AnomalyResult
		liquidity domain.LiquiditySnapshot
		security  domain.SecurityAssessment
		twap      domain.TWAPResult
		feed      domain.OracleCrossCheck

		anomalyErr, liquidityErr, securityErr, twapErr, feedErr error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		anomaly, anomalyErr = e.checks.Anomaly.Check(ctx, token, consensus)
	}()
	go func() {
		defer wg.Done()
		liquidity, liquidityErr = e.checks.Liquidity.Check(ctx, token)
	}()
	go func() {
		defer wg.Done()
		security, securityErr = e.checks.Security.Check(ctx, token)
	}()
	go func() {
		defer wg.Done()
		twap, twapErr = e.checks.TWAP.Check(ctx, token, consensus)
	}()
	go func() {
		defer wg.Done()
		feed, feedErr = e.checks.Feed.Check(ctx, token, consensus)
	}()
	wg.Wait()

	var reasons []domain.Reason
	add := func(check string, passed bool, detail string, err error) {
		if err != nil {
			e.logger.Warn("risk check unavailable",
				zap.String("token", token.Key()),
				zap.String("check", check),
				zap.Error(err))
			reasons = append(reasons, domain.Reason{
				Check:  check,
				Passed: false,
				Detail: "check unavailable: " + err.Error(),
			})
			return
		}
		reasons = append(reasons, domain.Reason{Check: check, Passed: passed, Detail: detail})
	}

	add("anomaly", anomaly.Pass,
		fmt.Sprintf("baseline $%s, deviation %s%% over %d samples", anomaly.Baseline, anomaly.DeviationPct.StringFixed(1), anomaly.Samples),
		anomalyErr)
	add("liquidity", liquidity.Pass,
		fmt.Sprintf("best pool $%s", liquidity.BestPoolUSD), liquidityErr)
	if liquidityErr == nil {
		add("volume_24h", liquidity.VolumeOK,
			fmt.Sprintf("24h volume $%s", liquidity.Volume24h), nil)
	}
	add("security", security.Pass, securityDetail(security), securityErr)
	add("twap", twap.Pass,
		fmt.Sprintf("twap $%s, deviation %s%% over %d observations", twap.TWAP, twap.DeviationPct.StringFixed(1), twap.Observations),
		twapErr)
	add("oracle_feed", feed.Pass, feedDetail(feed), feedErr)

	critical := securityErr == nil && security.Critical
	criticalDetail := ""
	if critical {
		criticalDetail = security.CriticalReason
	}
	return reasons, critical, criticalDetail
}

func (e *Engine) finish(decision domain.SweepDecision) domain.SweepDecision {
	decision.ComputedAt = time.Now().UTC()

	if e.audit != nil {
		if err := e.audit.Save(decision); err != nil {
			e.logger.Warn("audit save failed", zap.String("decision", decision.ID), zap.Error(err))
		}
	}

	e.logger.Info("sweep decision",
		zap.String("decision", decision.ID),
		zap.String("token", decision.Token.Key()),
		zap.String("verdict", string(decision.Verdict)),
		zap.String("value_usd", decision.ValueUSD.String()),
		zap.Int("failed_checks", len(decision.FailedReasons())))
	return decision
}

func listReason(status domain.ListStatus) domain.Reason {
	switch status {
	case domain.ListWhitelist:
		return domain.Reason{Check: "list", Passed: true, Detail: "whitelisted; risk checks skipped"}
	case domain.ListGraylist:
		return domain.Reason{Check: "list", Passed: true, Detail: "graylisted; manual review required"}
	default:
		return domain.Reason{Check: "list", Passed: true, Detail: "not listed"}
	}
}

func blacklistDetail(entry *domain.ListEntry) string {
	if entry != nil && entry.Reason != "" {
		return "blacklisted: " + entry.Reason
	}
	return "blacklisted"
}

func securityDetail(s domain.SecurityAssessment) string {
	if s.Critical {
		return s.CriticalReason
	}
	if len(s.Warnings) > 0 {
		return fmt.Sprintf("risk %s (%d): %v", s.RiskLevel, s.RiskScore, s.Warnings)
	}
	return fmt.Sprintf("risk %s (%d)", s.RiskLevel, s.RiskScore)
}

func feedDetail(f domain.OracleCrossCheck) string {
	if !f.FeedFound {
		return "no on-chain feed"
	}
	return fmt.Sprintf("feed $%s, deviation %s%%", f.FeedPrice, f.DeviationPct.StringFixed(1))
}
