package domain

import (
	"fmt"
	"time"
)

// ListStatus is the administrative standing of a token.
type ListStatus string

const (
	ListWhitelist ListStatus = "whitelist"
	ListBlacklist ListStatus = "blacklist"
	ListGraylist  ListStatus = "graylist"
)

// ParseListStatus validates a status string.
func ParseListStatus(s string) (ListStatus, error) {
	switch ListStatus(s) {
	case ListWhitelist, ListBlacklist, ListGraylist:
		return ListStatus(s), nil
	default:
		return "", fmt.Errorf("unknown list status: %q", s)
	}
}

// ListEntry is an externally administered list membership record.
type ListEntry struct {
	Token  TokenRef   `json:"token"`
	Status ListStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	SetBy  string     `json:"set_by,omitempty"`
	SetAt  time.Time  `json:"set_at"`
}
