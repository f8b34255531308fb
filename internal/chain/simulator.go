package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

// SellSimulation is the outcome of simulating a sell of the token.
type SellSimulation struct {
	Success      bool   `json:"success"`
	GasUsed      uint64 `json:"gasUsed"`
	RevertReason string `json:"revertReason,omitempty"`
}

// Simulator runs sell transactions against a transaction-simulation provider.
// A failed sell is the strongest honeypot signal available.
type Simulator struct {
	baseURL string
	rest    *restClient
}

// NewSimulator creates the simulator client.
func NewSimulator(baseURL string, timeout time.Duration, retry *retrier.Retrier) (*Simulator, error) {
	if baseURL == "" {
		return nil, errors.New("simulator base url required")
	}
	return &Simulator{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    newRESTClient("simulator", timeout, 2, retry),
	}, nil
}

// SimulateSell submits a sell of the token and reports whether it would
// execute. Provider errors are returned as errors, not as failed sells; the
// caller decides how to treat missing data.
func (s *Simulator) SimulateSell(ctx context.Context, token domain.TokenRef) (SellSimulation, error) {
	reqBody, err := json.Marshal(map[string]string{
		"chain": strings.ToLower(token.Chain),
		"token": strings.ToLower(token.Address),
		"side":  "sell",
	})
	if err != nil {
		return SellSimulation{}, errors.Wrap(err, "simulator: marshal request")
	}

	var result SellSimulation
	if err := s.rest.doJSON(ctx, "POST", s.baseURL+"/v1/simulate", bytes.NewReader(reqBody), &result); err != nil {
		return SellSimulation{}, errors.Wrap(err, "simulator: simulate sell")
	}
	return result, nil
}
