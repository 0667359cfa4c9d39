package graph

import (
	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrInvalidPath is returned for path text that cannot be parsed.
	ErrInvalidPath = errors.NewKind("invalid path %q: %s")

	// ErrUnknownNamespace is returned when a name uses an unregistered prefix.
	ErrUnknownNamespace = errors.NewKind("namespace prefix %q is not registered")

	// ErrPathNotFound is returned when no node exists at a location. The second
	// parameter is the lowest existing ancestor, when known.
	ErrPathNotFound = errors.NewKind("no node at %s (lowest existing ancestor %s)")

	// ErrNodeExists is returned when a create conflicts with an existing node.
	ErrNodeExists = errors.NewKind("node %s already exists")

	// ErrReadOnlySource is returned by sources that do not accept writes.
	ErrReadOnlySource = errors.NewKind("source %q is read-only")

	// ErrInvalidLocation is returned when a location lacks what an operation needs.
	ErrInvalidLocation = errors.NewKind("invalid location %s: %s")
)
