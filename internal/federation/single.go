package federation

import (
	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
)

// SingleProjectionExecutor serves one projection with a single rule. Each
// request is translated with the rule and forwarded unchanged; a composite
// travels to the source as one composite over one connection. Requests that
// touch paths outside the rule (placeholders above the mount point, for
// instance) are answered the federated way.
type SingleProjectionExecutor struct {
	proj     *projection.Projection
	factory  connector.ConnectionFactory
	fallback *FederatingExecutor
}

// NewSingleProjectionExecutor returns an executor for proj.
func NewSingleProjectionExecutor(proj *projection.Projection, factory connector.ConnectionFactory) *SingleProjectionExecutor {
	return &SingleProjectionExecutor{
		proj:     proj,
		factory:  factory,
		fallback: NewFederatingExecutor(NewConfig(graph.CachePolicy{}, proj), factory, false),
	}
}

// Projection returns the projection served.
func (e *SingleProjectionExecutor) Projection() *projection.Projection { return e.proj }

// Execute implements Executor.
func (e *SingleProjectionExecutor) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	if err := admit(r); err != nil {
		return err
	}
	r.Begin()
	t := translator{e.proj}
	fallback := e.fallback.newRun(ctx)

	var pending []*forward
	flush := func() {
		if len(pending) == 0 {
			return
		}
		var unit request.Request = pending[0].src
		if len(pending) > 1 {
			srcs := make([]request.Request, len(pending))
			for i, f := range pending {
				srcs[i] = f.src
			}
			unit = request.NewComposite(srcs...)
		}
		connector.Execute(e.factory, e.proj.SourceName(), ctx, unit)
		for _, f := range pending {
			f.finish()
		}
		pending = nil
	}

	for _, sub := range request.Unwrap(r) {
		if sub.IsFrozen() {
			continue
		}
		sub.Begin()
		if f, ok := t.translate(sub); ok {
			pending = append(pending, f)
			continue
		}
		// keep execution order: everything queued so far runs first
		flush()
		request.Dispatch(fallback, sub)
		sub.Finish()
	}
	flush()
	r.Finish()
	return nil
}
