// Package request defines the closed set of operations the federation engine
// executes. Requests are mutable accumulators: a caller fills in the inputs,
// an executor fills in the actual locations, results and error. Once a
// request reaches a terminal state it is frozen.
package request

import (
	"fmt"
	"sync/atomic"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/graph"
)

var (
	// ErrAlreadySubmitted is returned when a request is submitted twice.
	ErrAlreadySubmitted = errors.NewKind("request %s was already submitted (state %s)")

	// ErrFrozenRequest is raised when a terminal request is mutated.
	ErrFrozenRequest = errors.NewKind("request %s is %s and can no longer be changed")

	// ErrInconsistentLocation reports a source that answered with a location
	// contradicting what was asked for.
	ErrInconsistentLocation = errors.NewKind("inconsistent location for %s: %s")
)

// State is a request's position in its lifecycle.
type State int32

const (
	Created State = iota
	Submitted
	Executing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Submitted:
		return "SUBMITTED"
	case Executing:
		return "EXECUTING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// IsTerminal reports whether s is COMPLETED or FAILED.
func (s State) IsTerminal() bool { return s == Completed || s == Failed }

// Request is implemented only by the types in this package.
type Request interface {
	fmt.Stringer

	// Kind names the request type, e.g. "ReadNode".
	Kind() string
	// IsReadOnly reports whether executing the request cannot change content.
	IsReadOnly() bool

	State() State
	IsFrozen() bool
	HasError() bool
	Err() error
	SetError(err error)

	// Submit moves the request from CREATED to SUBMITTED.
	Submit() error
	// Begin marks the request EXECUTING.
	Begin()
	// Finish moves the request to COMPLETED or FAILED depending on its error.
	Finish()

	core() *base
}

// base carries the lifecycle and error common to every request.
type base struct {
	kind  string
	state atomic.Int32
	err   error
}

func (b *base) core() *base { return b }

// Kind implements Request.
func (b *base) Kind() string { return b.kind }

// State implements Request.
func (b *base) State() State { return State(b.state.Load()) }

// IsFrozen implements Request.
func (b *base) IsFrozen() bool { return b.State().IsTerminal() }

// HasError implements Request.
func (b *base) HasError() bool { return b.err != nil }

// Err implements Request.
func (b *base) Err() error { return b.err }

// SetError implements Request. A nil error clears any previous one.
func (b *base) SetError(err error) {
	b.checkMutable()
	b.err = err
}

// Submit implements Request.
func (b *base) Submit() error {
	if !b.state.CompareAndSwap(int32(Created), int32(Submitted)) {
		return ErrAlreadySubmitted.New(b.kind, b.State())
	}
	return nil
}

// Begin implements Request. A CREATED request is implicitly submitted.
func (b *base) Begin() {
	b.checkMutable()
	b.state.CompareAndSwap(int32(Created), int32(Submitted))
	b.state.CompareAndSwap(int32(Submitted), int32(Executing))
}

// Finish implements Request. Finishing a terminal request has no effect.
func (b *base) Finish() {
	if b.IsFrozen() {
		return
	}
	if b.err != nil {
		b.state.Store(int32(Failed))
		return
	}
	b.state.Store(int32(Completed))
}

func (b *base) checkMutable() {
	if s := b.State(); s.IsTerminal() {
		panic(ErrFrozenRequest.New(b.kind, s))
	}
}

// Start submits and begins r in one step.
func Start(r Request) error {
	if err := r.Submit(); err != nil {
		return err
	}
	r.Begin()
	return nil
}

// inconsistent builds an ErrInconsistentLocation for r.
func inconsistent(kind string, format string, args ...any) error {
	return ErrInconsistentLocation.New(kind, fmt.Sprintf(format, args...))
}

// actual holds the location an executor reports for the node a request
// addressed.
type actual struct {
	loc graph.Location
	set bool
}

func (a *actual) get() (graph.Location, bool) { return a.loc, a.set }

// checkSameNode verifies that got identifies the node requested by want.
func checkSameNode(kind string, want, got graph.Location) error {
	if !got.HasPath() {
		return inconsistent(kind, "actual location %s has no path", got)
	}
	if want.HasPath() && !want.Path().Equal(got.Path()) {
		return inconsistent(kind, "asked for %s but source answered %s", want.Path(), got.Path())
	}
	if id, ok := want.UUID(); ok {
		if gotID, has := got.UUID(); has && gotID != id {
			return inconsistent(kind, "asked for uuid %s but source answered %s", id, gotID)
		}
	}
	return nil
}

// checkPlacedChild verifies that got is a child of parent named name.
func checkPlacedChild(kind string, parent graph.Location, name string, got graph.Location) error {
	if !got.HasPath() {
		return inconsistent(kind, "actual location %s has no path", got)
	}
	last, ok := got.Path().Last()
	if !ok {
		return inconsistent(kind, "actual location is the root")
	}
	if parent.HasPath() && !got.Path().Parent().Equal(parent.Path()) {
		return inconsistent(kind, "%s is not a child of %s", got.Path(), parent.Path())
	}
	if name != "" && last.Name != name {
		return inconsistent(kind, "expected a node named %q but source answered %s", name, got.Path())
	}
	return nil
}

// checkChildOf verifies that child lies directly below parent.
func checkChildOf(kind string, parent, child graph.Location) error {
	if !child.HasPath() {
		return inconsistent(kind, "child location %s has no path", child)
	}
	if parent.HasPath() && !child.Path().Parent().Equal(parent.Path()) {
		return inconsistent(kind, "%s is not a child of %s", child.Path(), parent.Path())
	}
	if child.Path().IsRoot() {
		return inconsistent(kind, "the root cannot be a child")
	}
	return nil
}
