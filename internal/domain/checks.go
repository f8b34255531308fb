package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel classifies the aggregate security risk of a token.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFromScore maps a 0-100 risk score to a level.
func RiskLevelFromScore(score int) RiskLevel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AnomalyResult compares a consensus price against the rolling baseline.
type AnomalyResult struct {
	Token        TokenRef        `json:"token"`
	Pass         bool            `json:"pass"`
	Baseline     decimal.Decimal `json:"baseline"`
	DeviationPct decimal.Decimal `json:"deviation_pct"`
	Samples      int             `json:"samples"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// PoolDepth is one DEX pool observed for a token.
type PoolDepth struct {
	Dex          string          `json:"dex"`
	PairAddress  string          `json:"pair_address"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
}

// LiquiditySnapshot reports whether at least one pool is deep enough to exit.
type LiquiditySnapshot struct {
	Token       TokenRef        `json:"token"`
	Pass        bool            `json:"pass"`
	BestPoolUSD decimal.Decimal `json:"best_pool_usd"`
	Volume24h   decimal.Decimal `json:"volume_24h_usd"`
	// VolumeOK is a soft signal: thin 24h volume downgrades to review
	// without failing the liquidity check itself.
	VolumeOK   bool        `json:"volume_ok"`
	Pools      []PoolDepth `json:"pools,omitempty"`
	ComputedAt time.Time   `json:"computed_at"`
}

// SecurityAssessment aggregates honeypot, tax, holder and age findings.
type SecurityAssessment struct {
	Token TokenRef `json:"token"`
	Pass  bool     `json:"pass"`
	// Critical marks findings that force rejection (cannot sell, honeypot).
	Critical       bool            `json:"critical"`
	CriticalReason string          `json:"critical_reason,omitempty"`
	SellTaxPct     decimal.Decimal `json:"sell_tax_pct"`
	BuyTaxPct      decimal.Decimal `json:"buy_tax_pct"`
	TopHoldersPct  decimal.Decimal `json:"top_holders_pct"`
	AgeDays        int             `json:"age_days"`
	RiskScore      int             `json:"risk_score"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Flags          []string        `json:"flags,omitempty"`
	// Warnings are non-critical findings that individually downgrade to review.
	Warnings   []string  `json:"warnings,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// TWAPResult compares the consensus price to the time-weighted average
// computed from stored observations.
type TWAPResult struct {
	Token        TokenRef        `json:"token"`
	Pass         bool            `json:"pass"`
	TWAP         decimal.Decimal `json:"twap"`
	DeviationPct decimal.Decimal `json:"deviation_pct"`
	Observations int             `json:"observations"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// OracleCrossCheck compares the off-chain consensus against an on-chain feed.
// Absence of a feed is not a failure; most tokens have none.
type OracleCrossCheck struct {
	Token        TokenRef        `json:"token"`
	Pass         bool            `json:"pass"`
	FeedFound    bool            `json:"feed_found"`
	FeedPrice    decimal.Decimal `json:"feed_price"`
	DeviationPct decimal.Decimal `json:"deviation_pct"`
	ComputedAt   time.Time       `json:"computed_at"`
}
