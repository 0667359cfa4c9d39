// Package federation executes requests against a federated repository: it
// routes each request through the projections of a configuration to the
// sources behind them and merges what comes back.
package federation

import (
	"github.com/sirupsen/logrus"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// Executor executes requests. The returned error only reports lifecycle
// misuse (for instance a request submitted twice); execution failures are
// recorded on the request itself.
type Executor interface {
	Execute(ctx *graph.ExecutionContext, r request.Request) error
}

// Option configures executors and repositories.
type Option func(*options)

type options struct {
	parallel    bool
	logRequests bool
	logger      logrus.FieldLogger
}

func buildOptions(opts []Option) options {
	o := options{logger: logrus.StandardLogger()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithParallelReads fans federated reads out to all contributing sources
// concurrently. Merge order is unchanged.
func WithParallelReads() Option {
	return func(o *options) { o.parallel = true }
}

// WithRequestLogging wraps the selected executor in a LoggingExecutor.
func WithRequestLogging() Option {
	return func(o *options) { o.logRequests = true }
}

// WithLogger sets the logger used by the repository and the logging executor.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// NewExecutor picks the executor for cfg: a NoOpExecutor when no projection
// has rules, a SingleProjectionExecutor for exactly one projection with one
// rule, and a FederatingExecutor otherwise.
func NewExecutor(cfg *Config, factory connector.ConnectionFactory, opts ...Option) Executor {
	o := buildOptions(opts)
	var e Executor
	projections := cfg.Contributing()
	switch {
	case len(projections) == 0:
		e = NoOpExecutor{}
	case len(projections) == 1 && projections[0].IsSimple():
		e = NewSingleProjectionExecutor(projections[0], factory)
	default:
		e = NewFederatingExecutor(cfg, factory, o.parallel)
	}
	if o.logRequests {
		e = NewLoggingExecutor(e, o.logger)
	}
	return e
}

// admit submits r unless a caller already did.
func admit(r request.Request) error {
	if r.State() == request.Submitted {
		return nil
	}
	return r.Submit()
}

// NoOpExecutor serves a repository without content. Every request completes
// without error and without results; actual locations echo the request.
type NoOpExecutor struct{}

// Execute implements Executor.
func (NoOpExecutor) Execute(_ *graph.ExecutionContext, r request.Request) error {
	if err := admit(r); err != nil {
		return err
	}
	request.Process(noOp{}, r)
	return nil
}

// noOp echoes locations where the request names a path.
type noOp struct{}

func (noOp) ReadNode(r *request.ReadNode) {
	if r.At.HasPath() {
		_ = r.SetActualLocation(r.At)
	}
}

func (noOp) ReadAllProperties(r *request.ReadAllProperties) {
	if r.At.HasPath() {
		_ = r.SetActualLocation(r.At)
	}
	r.SetNumberOfChildren(0)
}

func (noOp) ReadProperty(r *request.ReadProperty) {
	if r.At.HasPath() {
		_ = r.SetActualLocation(r.At)
	}
}

func (noOp) ReadAllChildren(r *request.ReadAllChildren) {
	if r.Of.HasPath() {
		_ = r.SetActualLocation(r.Of)
	}
}

func (noOp) ReadBlockOfChildren(r *request.ReadBlockOfChildren) {
	if r.Of.HasPath() {
		_ = r.SetActualLocation(r.Of)
	}
}

func (noOp) ReadNextBlockOfChildren(r *request.ReadNextBlockOfChildren) {
	if r.StartingAfter.HasPath() {
		_ = r.SetActualLocation(r.StartingAfter)
	}
}

func (noOp) ReadBranch(r *request.ReadBranch) {
	if r.At.HasPath() {
		_ = r.SetActualLocation(r.At)
	}
}

func (noOp) CreateNode(r *request.CreateNode) {
	if r.Under.HasPath() {
		_ = r.SetActualLocation(graph.At(r.Under.Path().ChildNamed(r.ChildName)))
	}
}

func (noOp) UpdateProperties(r *request.UpdateProperties) {
	if r.On.HasPath() {
		_ = r.SetActualLocation(r.On)
	}
}

func (noOp) RemoveProperties(r *request.RemoveProperties) {
	if r.From.HasPath() {
		_ = r.SetActualLocation(r.From)
	}
}

func (noOp) MoveBranch(r *request.MoveBranch) {
	if r.From.HasPath() && r.Into.HasPath() && !r.From.Path().IsRoot() {
		_ = r.SetActualLocations(r.From, graph.At(r.Into.Path().ChildNamed(placedName(r.From, r.NewName))))
	}
}

func (noOp) CopyBranch(r *request.CopyBranch) {
	if r.From.HasPath() && r.Into.HasPath() && !r.From.Path().IsRoot() {
		_ = r.SetActualLocations(r.From, graph.At(r.Into.Path().ChildNamed(placedName(r.From, r.NewName))))
	}
}

func (noOp) DeleteBranch(r *request.DeleteBranch) {
	if r.At.HasPath() {
		_ = r.SetActualLocation(r.At)
	}
}

func placedName(from graph.Location, newName string) string {
	if newName != "" {
		return newName
	}
	last, _ := from.Path().Last()
	return last.Name
}
