package tc

import "errors"

// Sentinel errors for the conditions callers branch on. InvalidTopology and
// InvalidState surface synchronously; DispatchFailure is logged and wrapped
// with context but never corrupts in-memory state, since kernel divergence
// self-heals on the next activity event.
var (
	// ErrInvalidTopology signals a dangling parent, duplicate handle, or
	// inverted rate range.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrInvalidState signals batch control invoked in the wrong phase.
	ErrInvalidState = errors.New("invalid batch state")
	// ErrDispatchFailure wraps a non-zero exit from the external tc runner.
	ErrDispatchFailure = errors.New("tc dispatch failed")
)
