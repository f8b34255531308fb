package domain

import "github.com/pkg/errors"

var (
	// ErrInsufficientData means the consensus quorum was not met. It surfaces
	// as a review verdict, never as a guessed price.
	ErrInsufficientData = errors.New("insufficient price data for consensus")

	// ErrNoFeed means no on-chain price feed is registered for the token.
	ErrNoFeed = errors.New("no on-chain feed for token")
)
