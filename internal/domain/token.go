// Package domain defines the core data structures shared by the sweep-safety engine.
package domain

import (
	"fmt"
	"strings"
)

// TokenRef identifies a token by chain and contract address.
// All engine state (history, lists, caches) is keyed by it.
type TokenRef struct {
	// Chain network name, e.g. "ethereum", "bsc", "base".
	Chain string `json:"chain"`
	// Address contract address, hex string.
	Address string `json:"address"`
}

// Key returns the canonical cache/storage key for the token.
func (t TokenRef) Key() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(t.Chain), strings.ToLower(t.Address))
}

// String returns the string representation.
func (t TokenRef) String() string {
	return t.Key()
}

// Validate checks that both parts are present.
func (t TokenRef) Validate() error {
	if strings.TrimSpace(t.Chain) == "" {
		return fmt.Errorf("token chain is required")
	}
	if strings.TrimSpace(t.Address) == "" {
		return fmt.Errorf("token address is required")
	}
	return nil
}
