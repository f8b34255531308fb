package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the engine's final answer for one sweep request.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReview  Verdict = "review"
	VerdictReject  Verdict = "reject"
)

// Reason is one entry of the audit trail behind a verdict. Reasons are
// recorded for every check performed, including the ones that passed.
type Reason struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// SweepDecision is the engine's sole output. Immutable once produced.
type SweepDecision struct {
	ID       string          `json:"id"`
	Token    TokenRef        `json:"token"`
	Verdict  Verdict         `json:"verdict"`
	ValueUSD decimal.Decimal `json:"value_usd"`
	// Reasons are ordered by check execution precedence.
	Reasons    []Reason        `json:"reasons"`
	Consensus  *ConsensusPrice `json:"consensus,omitempty"`
	ListStatus ListStatus      `json:"list_status,omitempty"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Rejected reports whether the decision is terminal-negative.
func (d *SweepDecision) Rejected() bool {
	return d.Verdict == VerdictReject
}

// FailedReasons returns only the reasons that did not pass.
func (d *SweepDecision) FailedReasons() []Reason {
	out := make([]Reason, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
