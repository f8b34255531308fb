package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the normalized answer of a single oracle source.
// Immutable; it lives only for the duration of one aggregation.
type PriceQuote struct {
	Source     string          `json:"source"`
	Token      TokenRef        `json:"token"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
	// Meta carries provider-specific details (pair, pool, feed id) for audit.
	Meta map[string]string `json:"meta,omitempty"`
}

// ConsensusPrice is the single trusted price derived from multiple quotes.
type ConsensusPrice struct {
	Token TokenRef        `json:"token"`
	Price decimal.Decimal `json:"price"`
	// Confidence in [0,1]: agreeing sources over configured sources,
	// scaled down when the survivors still disagree.
	Confidence  float64   `json:"confidence"`
	Agreeing    []string  `json:"agreeing"`
	Disagreeing []string  `json:"disagreeing"`
	ComputedAt  time.Time `json:"computed_at"`
}

// PricePoint is one stored history observation for a token.
type PricePoint struct {
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}
