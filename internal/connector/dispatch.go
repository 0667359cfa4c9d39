package connector

import (
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// Execute acquires a connection to sourceName, executes r on it once and
// closes it, whatever the outcome. Failures to connect or execute are
// recorded on r.
func Execute(factory ConnectionFactory, sourceName string, ctx *graph.ExecutionContext, r request.Request) {
	conn, err := factory.CreateConnection(sourceName)
	if err != nil {
		failAll(r, ErrRepositorySource.Wrap(err, sourceName))
		return
	}
	if conn == nil {
		failAll(r, ErrSourceNotFound.New(sourceName))
		return
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			ctx.Logger().WithField("source", sourceName).WithError(cerr).Warn("closing connection")
		}
	}()
	if err := conn.Execute(ctx, r); err != nil && !r.IsFrozen() {
		failAll(r, ErrRepositorySource.Wrap(err, sourceName))
	}
}

// failAll records err on r (or on every unfinished sub-request of a
// composite) and finishes it.
func failAll(r request.Request, err error) {
	r.Begin()
	for _, sub := range request.Unwrap(r) {
		if sub.IsFrozen() {
			continue
		}
		sub.Begin()
		sub.SetError(err)
	}
	if c, ok := r.(*request.Composite); ok {
		c.SetError(err)
	}
	r.Finish()
}

// Dispatcher executes requests directly against one named source, with no
// projection in between.
type Dispatcher struct {
	factory ConnectionFactory
	source  string
}

// NewDispatcher returns a dispatcher for sourceName.
func NewDispatcher(factory ConnectionFactory, sourceName string) *Dispatcher {
	return &Dispatcher{factory: factory, source: sourceName}
}

// SourceName implements client.Executor.
func (d *Dispatcher) SourceName() string { return d.source }

// Execute implements client.Executor.
func (d *Dispatcher) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	if err := r.Submit(); err != nil {
		return err
	}
	Execute(d.factory, d.source, ctx, r)
	return nil
}
