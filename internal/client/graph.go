// Package client is the caller-facing API of a federated repository: the
// immediate Graph operations and the deferred Batch builder.
package client

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// Executor runs requests for the client. federation.Repository and
// connector.Dispatcher both satisfy it.
type Executor interface {
	Execute(ctx *graph.ExecutionContext, r request.Request) error
	SourceName() string
}

// Graph executes one request per call.
type Graph struct {
	exec Executor
	ctx  *graph.ExecutionContext
}

// New returns a Graph over exec. A nil context uses graph.NewExecutionContext.
func New(exec Executor, ctx *graph.ExecutionContext) *Graph {
	if ctx == nil {
		ctx = graph.NewExecutionContext()
	}
	return &Graph{exec: exec, ctx: ctx}
}

// Context returns the execution context requests run with.
func (g *Graph) Context() *graph.ExecutionContext { return g.ctx }

// SourceName names the repository behind the graph.
func (g *Graph) SourceName() string { return g.exec.SourceName() }

// Location parses text with the context's namespaces.
func (g *Graph) Location(text string) (graph.Location, error) {
	p, err := g.ctx.ParsePath(text)
	if err != nil {
		return graph.Location{}, err
	}
	return graph.At(p), nil
}

// wrap passes error kinds through and attributes anything else to the
// repository's source.
func (g *Graph) wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return connector.ErrRepositorySource.Wrap(err, g.exec.SourceName())
}

// run executes r and returns its lifecycle or execution error.
func (g *Graph) run(r request.Request) error {
	if err := g.exec.Execute(g.ctx, r); err != nil {
		return g.wrap(err)
	}
	return g.wrap(r.Err())
}

// Node reads the properties and children of the node at loc.
func (g *Graph) Node(loc graph.Location) (*Node, error) {
	r := request.NewReadNode(loc)
	if err := g.run(r); err != nil {
		return nil, err
	}
	actual, _ := r.ActualLocation()
	n, _ := newResults(r).NodeAt(actual)
	return n, nil
}

// Children lists the children of the node at loc.
func (g *Graph) Children(loc graph.Location) ([]graph.Location, error) {
	r := request.NewReadAllChildren(loc)
	if err := g.run(r); err != nil {
		return nil, err
	}
	return r.Children(), nil
}

// Properties reads every property of the node at loc.
func (g *Graph) Properties(loc graph.Location) ([]graph.Property, error) {
	r := request.NewReadAllProperties(loc)
	if err := g.run(r); err != nil {
		return nil, err
	}
	return r.Properties(), nil
}

// Property reads one property; ok is false when the node lacks it.
func (g *Graph) Property(loc graph.Location, name string) (p graph.Property, ok bool, err error) {
	r := request.NewReadProperty(loc, name)
	if err := g.run(r); err != nil {
		return graph.Property{}, false, err
	}
	p, ok = r.Property()
	return p, ok, nil
}

// Subgraph reads the branch at loc down to depth levels.
func (g *Graph) Subgraph(loc graph.Location, depth int) (*Subgraph, error) {
	r := request.NewReadBranch(loc, depth)
	if err := g.run(r); err != nil {
		return nil, err
	}
	actual, _ := r.ActualLocation()
	return &Subgraph{root: actual.Path(), depth: depth, results: newResults(r)}, nil
}

// Create creates a child of parent and returns its actual location.
func (g *Graph) Create(parent graph.Location, name string, props ...graph.Property) (graph.Location, error) {
	r := request.NewCreateNode(parent, name, props...)
	if err := g.run(r); err != nil {
		return graph.Location{}, err
	}
	loc, _ := r.ActualLocation()
	return loc, nil
}

// Set sets properties on the node at loc; a property without values is
// removed.
func (g *Graph) Set(loc graph.Location, props ...graph.Property) error {
	return g.run(request.NewUpdateProperties(loc, props...))
}

// Remove removes the named properties from the node at loc.
func (g *Graph) Remove(loc graph.Location, names ...string) error {
	return g.run(request.NewRemoveProperties(loc, names...))
}

// Move moves the branch at from under into, renamed when newName is not
// empty, and returns its new location.
func (g *Graph) Move(from, into graph.Location, newName string) (graph.Location, error) {
	r := request.NewMoveBranch(from, into, newName)
	if err := g.run(r); err != nil {
		return graph.Location{}, err
	}
	loc, _ := r.ActualNewLocation()
	return loc, nil
}

// Copy copies the branch at from under into and returns the copy's location.
func (g *Graph) Copy(from, into graph.Location, newName string) (graph.Location, error) {
	r := request.NewCopyBranch(from, into, newName)
	if err := g.run(r); err != nil {
		return graph.Location{}, err
	}
	loc, _ := r.ActualCopyLocation()
	return loc, nil
}

// Delete deletes the branch at loc.
func (g *Graph) Delete(loc graph.Location) error {
	return g.run(request.NewDeleteBranch(loc))
}

// Batch starts a deferred batch.
func (g *Graph) Batch() *Batch {
	return &Batch{g: g}
}
