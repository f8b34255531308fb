package web

import (
	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/storage/decisions"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// DecideRequest asks for a sweep verdict on one token.
type DecideRequest struct {
	Chain    string `json:"chain"`
	Address  string `json:"address"`
	ValueUSD string `json:"value_usd"`
}

// PriceResponse carries a consensus price.
type PriceResponse struct {
	Consensus domain.ConsensusPrice `json:"consensus"`
}

// ListUpsertRequest creates or replaces a list entry.
type ListUpsertRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	SetBy   string `json:"set_by,omitempty"`
}

// ListIndexResponse carries every list entry.
type ListIndexResponse struct {
	Entries []*domain.ListEntry `json:"entries"`
}

// AuditResponse carries audited decisions after a WAL index.
type AuditResponse struct {
	CurrentIndex uint64             `json:"current_index"`
	Records      []decisions.Record `json:"records"`
}
