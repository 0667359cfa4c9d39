package federation

import (
	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrNotProjectable is returned when a write target does not resolve to
	// exactly one projection.
	ErrNotProjectable = errors.NewKind("%s is not projectable: %s")

	// ErrCrossSourceOperation is returned for a move or copy whose ends live
	// in different sources.
	ErrCrossSourceOperation = errors.NewKind("cannot %s %s in source %q to %s in source %q")

	// ErrPlaceholderWrite is returned for writes addressed to a synthesized
	// placeholder node.
	ErrPlaceholderWrite = errors.NewKind("%s is a placeholder above a projection and cannot be changed")

	// ErrConfiguration reports a malformed federation configuration.
	ErrConfiguration = errors.NewKind("invalid federation configuration: %s")
)
