package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/internal/chain"
	"github.com/speraxos/sweepguard/internal/domain"
)

// Screener fetches the contract security report for a token.
type Screener interface {
	Screen(ctx context.Context, token domain.TokenRef) (chain.Report, error)
}

// Simulator runs a sell of the token and reports whether it would execute.
type Simulator interface {
	SimulateSell(ctx context.Context, token domain.TokenRef) (chain.SellSimulation, error)
}

// AgeSource reports when a token was first observed trading.
type AgeSource interface {
	FirstSeen(ctx context.Context, token domain.TokenRef) (time.Time, error)
}

// SecurityConfig tunes the contract security check.
type SecurityConfig struct {
	MaxSellTaxPct    decimal.Decimal
	MaxTopHoldersPct decimal.Decimal
	MinAgeDays       int
}

// SecurityValidator aggregates screening, sell simulation and token age into
// one assessment. Findings split into critical ones, which force rejection,
// and warnings, which force review.
type SecurityValidator struct {
	screener  Screener
	simulator Simulator
	age       AgeSource
	cfg       SecurityConfig
	logger    *zap.Logger
}

// NewSecurityValidator creates the validator. The simulator and age source
// are optional; without them those signals are simply absent.
func NewSecurityValidator(screener Screener, simulator Simulator, age AgeSource, cfg SecurityConfig, logger *zap.Logger) (*SecurityValidator, error) {
	if screener == nil {
		return nil, errors.New("screener is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityValidator{
		screener:  screener,
		simulator: simulator,
		age:       age,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Check builds the security assessment for a token.
func (v *SecurityValidator) Check(ctx context.Context, token domain.TokenRef) (domain.SecurityAssessment, error) {
	report, err := v.screener.Screen(ctx, token)
	if err != nil {
		return domain.SecurityAssessment{}, errors.Wrap(err, "screen token")
	}

	result := domain.SecurityAssessment{
		Token:         token,
		SellTaxPct:    report.SellTaxPct,
		BuyTaxPct:     report.BuyTaxPct,
		TopHoldersPct: report.TopHoldersPct,
		Flags:         report.Flags,
		ComputedAt:    time.Now().UTC(),
	}

	switch {
	case report.Honeypot:
		result.Critical = true
		result.CriticalReason = "token is a honeypot"
		if report.HoneypotReason != "" {
			result.CriticalReason = "token is a honeypot: " + report.HoneypotReason
		}
	case !report.CanSell:
		result.Critical = true
		result.CriticalReason = "token cannot be sold"
	case hasFlag(report.Flags, chain.FlagOwnerChangeBalance):
		result.Critical = true
		result.CriticalReason = "owner can modify balances"
	}

	// The sell simulation is the strongest signal: a reverted sell is a
	// honeypot no matter what the screener said.
	if !result.Critical && v.simulator != nil {
		sim, err := v.simulator.SimulateSell(ctx, token)
		if err != nil {
			return domain.SecurityAssessment{}, errors.Wrap(err, "simulate sell")
		}
		if !sim.Success {
			result.Critical = true
			result.CriticalReason = "sell simulation reverted"
			if sim.RevertReason != "" {
				result.CriticalReason = "sell simulation reverted: " + sim.RevertReason
			}
		}
	}

	result.RiskScore = riskScore(report.Flags, report.BuyTaxPct, report.SellTaxPct)
	result.RiskLevel = domain.RiskLevelFromScore(result.RiskScore)
	if !result.Critical && result.RiskLevel == domain.RiskCritical {
		result.Critical = true
		result.CriticalReason = fmt.Sprintf("critical risk score %d", result.RiskScore)
	}

	if report.SellTaxPct.GreaterThan(v.cfg.MaxSellTaxPct) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("sell tax %s%% above %s%%", report.SellTaxPct.StringFixed(1), v.cfg.MaxSellTaxPct))
	}
	if report.TopHoldersPct.GreaterThan(v.cfg.MaxTopHoldersPct) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("top holders control %s%% of supply", report.TopHoldersPct.StringFixed(1)))
	}
	if result.RiskLevel == domain.RiskHigh {
		result.Warnings = append(result.Warnings, fmt.Sprintf("high risk score %d", result.RiskScore))
	}

	if v.age != nil {
		firstSeen, err := v.age.FirstSeen(ctx, token)
		if err != nil {
			// age is a soft signal; an unavailable source does not block
			v.logger.Debug("token age unavailable", zap.String("token", token.Key()), zap.Error(err))
		} else {
			result.AgeDays = int(time.Since(firstSeen).Hours() / 24)
			if result.AgeDays < v.cfg.MinAgeDays {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("token is only %d days old", result.AgeDays))
			}
		}
	}

	result.Pass = !result.Critical && len(result.Warnings) == 0
	return result, nil
}

// riskScore accumulates flag and tax severity into a 0-100 score.
func riskScore(flags []string, buyTaxPct, sellTaxPct decimal.Decimal) int {
	weights := map[string]int{
		chain.FlagHoneypot:           100,
		chain.FlagOwnerChangeBalance: 50,
		chain.FlagSelfDestruct:       50,
		chain.FlagHiddenOwner:        25,
		chain.FlagOwnershipTakeback:  25,
		chain.FlagUnverified:         20,
		chain.FlagExternalCalls:      15,
		chain.FlagMintable:           10,
		chain.FlagProxy:              10,
		chain.FlagBlacklistFunc:      10,
		chain.FlagWhitelistFunc:      5,
		chain.FlagAntiWhale:          5,
		chain.FlagTradingCooldown:    5,
	}

	score := 0
	for _, f := range flags {
		score += weights[f]
	}
	score += taxScore(buyTaxPct)
	score += taxScore(sellTaxPct)

	if score > 100 {
		score = 100
	}
	return score
}

func taxScore(taxPct decimal.Decimal) int {
	switch {
	case taxPct.GreaterThan(decimal.NewFromInt(50)):
		return 40
	case taxPct.GreaterThan(decimal.NewFromInt(20)):
		return 20
	case taxPct.GreaterThan(decimal.NewFromInt(10)):
		return 10
	}
	return 0
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
