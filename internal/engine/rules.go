package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// verdictInput is everything the decision table looks at. Check execution is
// finished by the time it is built; the table only ranks the findings.
type verdictInput struct {
	ListStatus     domain.ListStatus
	Critical       bool
	CriticalDetail string
	FailedChecks   []string
	Confidence     float64
	MinConfidence  float64
	ValueUSD       decimal.Decimal
	ValueCapUSD    decimal.Decimal
}

type rule struct {
	name    string
	verdict domain.Verdict
	matches func(in verdictInput) (string, bool)
}

// verdictRules is the precedence order itself: the first matching rule wins.
// Anything not caught by a rule is auto-approved, so every uncertain state
// must be represented here.
var verdictRules = []rule{
	{
		name:    "critical_security_finding",
		verdict: domain.VerdictReject,
		matches: func(in verdictInput) (string, bool) {
			return in.CriticalDetail, in.Critical
		},
	},
	{
		name:    "failed_check",
		verdict: domain.VerdictReview,
		matches: func(in verdictInput) (string, bool) {
			if len(in.FailedChecks) == 0 {
				return "", false
			}
			return fmt.Sprintf("checks failed: %v", in.FailedChecks), true
		},
	},
	{
		name:    "graylisted",
		verdict: domain.VerdictReview,
		matches: func(in verdictInput) (string, bool) {
			return "token is graylisted", in.ListStatus == domain.ListGraylist
		},
	},
	{
		name:    "low_confidence",
		verdict: domain.VerdictReview,
		matches: func(in verdictInput) (string, bool) {
			// the minimum itself still auto-approves
			if in.Confidence >= in.MinConfidence {
				return "", false
			}
			return fmt.Sprintf("consensus confidence %.2f below minimum %.2f",
				in.Confidence, in.MinConfidence), true
		},
	},
	{
		name:    "value_above_cap",
		verdict: domain.VerdictReview,
		matches: func(in verdictInput) (string, bool) {
			// the cap itself is still auto-approvable
			if in.ValueUSD.LessThanOrEqual(in.ValueCapUSD) {
				return "", false
			}
			return fmt.Sprintf("value $%s above auto-approval cap $%s",
				in.ValueUSD, in.ValueCapUSD), true
		},
	},
}

// decideVerdict runs the rule table and returns the verdict with the name and
// detail of the rule that produced it. An empty rule name means auto-approval.
func decideVerdict(in verdictInput) (domain.Verdict, string, string) {
	for _, r := range verdictRules {
		if detail, ok := r.matches(in); ok {
			return r.verdict, r.name, detail
		}
	}
	return domain.VerdictApprove, "", ""
}
