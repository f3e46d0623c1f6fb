package engine

import "errors"

var (
	// ErrInvariantViolation marks a broken single-writer invariant, such
	// as a second open downtime interval for one key. It is surfaced,
	// never silently corrected.
	ErrInvariantViolation = errors.New("state invariant violation")
)
