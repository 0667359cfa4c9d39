package client

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// ErrBatchExecuted is recorded when a batch is changed after Execute.
var ErrBatchExecuted = errors.NewKind("batch was already executed")

// Batch collects requests and executes them together. Nothing is sent until
// Execute. Like bufio.Writer, the first misuse is recorded and every later
// call is a no-op; Err and Execute report it.
//
// Consecutive Set calls on the identical location are merged into a single
// property update.
type Batch struct {
	g        *Graph
	requests []request.Request
	err      error
	executed bool
	results  *Results
}

// Err returns the first error recorded on the batch.
func (b *Batch) Err() error { return b.err }

// Len is the number of requests queued.
func (b *Batch) Len() int { return len(b.requests) }

func (b *Batch) fail(err error) *Batch {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Batch) add(r request.Request) *Batch {
	if b.executed {
		return b.fail(ErrBatchExecuted.New())
	}
	if b.err != nil {
		return b
	}
	if u, ok := r.(*request.UpdateProperties); ok && len(b.requests) > 0 {
		if prev, ok := b.requests[len(b.requests)-1].(*request.UpdateProperties); ok && prev.CanMerge(u) {
			prev.Merge(u)
			return b
		}
	}
	b.requests = append(b.requests, r)
	return b
}

// Read queues a read of the node's properties and children.
func (b *Batch) Read(loc graph.Location) *Batch {
	return b.add(request.NewReadNode(loc))
}

// ReadProperties queues a read of every property.
func (b *Batch) ReadProperties(loc graph.Location) *Batch {
	return b.add(request.NewReadAllProperties(loc))
}

// ReadProperty queues a read of one property.
func (b *Batch) ReadProperty(loc graph.Location, name string) *Batch {
	return b.add(request.NewReadProperty(loc, name))
}

// ReadChildren queues a read of every child.
func (b *Batch) ReadChildren(loc graph.Location) *Batch {
	return b.add(request.NewReadAllChildren(loc))
}

// ReadBlockOfChildren queues a read of count children from index start.
func (b *Batch) ReadBlockOfChildren(loc graph.Location, start, count int) *Batch {
	return b.add(request.NewReadBlockOfChildren(loc, start, count))
}

// ReadNextBlockOfChildren queues a read of the count siblings after loc.
func (b *Batch) ReadNextBlockOfChildren(after graph.Location, count int) *Batch {
	return b.add(request.NewReadNextBlockOfChildren(after, count))
}

// ReadSubgraph queues a branch read down to depth levels.
func (b *Batch) ReadSubgraph(loc graph.Location, depth int) *Batch {
	return b.add(request.NewReadBranch(loc, depth))
}

// Delete queues the deletion of a branch.
func (b *Batch) Delete(loc graph.Location) *Batch {
	return b.add(request.NewDeleteBranch(loc))
}

// CreateBuilder describes a node to create. And adds it to the batch.
type CreateBuilder struct {
	b        *Batch
	parent   graph.Location
	name     string
	props    []graph.Property
	conflict request.ConflictBehavior
}

// Create starts describing the node to create at p.
func (b *Batch) Create(p graph.Path) *CreateBuilder {
	c := &CreateBuilder{b: b}
	last, ok := p.Last()
	if !ok {
		b.fail(graph.ErrInvalidLocation.New(p, "the root cannot be created"))
		return c
	}
	c.parent = graph.At(p.Parent())
	c.name = last.Name
	return c
}

// CreateUnder starts describing a child of parent named name.
func (b *Batch) CreateUnder(parent graph.Location, name string) *CreateBuilder {
	return &CreateBuilder{b: b, parent: parent, name: name}
}

// With adds properties to the new node.
func (c *CreateBuilder) With(props ...graph.Property) *CreateBuilder {
	c.props = append(c.props, props...)
	return c
}

// WithProperty adds one property to the new node.
func (c *CreateBuilder) WithProperty(name string, values ...any) *CreateBuilder {
	return c.With(graph.NewProperty(name, values...))
}

// OnConflict chooses what happens when a same-name sibling exists.
func (c *CreateBuilder) OnConflict(behavior request.ConflictBehavior) *CreateBuilder {
	c.conflict = behavior
	return c
}

// And adds the creation to the batch.
func (c *CreateBuilder) And() *Batch {
	if c.name == "" {
		return c.b
	}
	r := request.NewCreateNode(c.parent, c.name, c.props...)
	r.Conflict = c.conflict
	return c.b.add(r)
}

// SetBuilder describes one property change. On adds it to the batch.
type SetBuilder struct {
	b    *Batch
	prop graph.Property
}

// Set starts a property change; no values removes the property.
func (b *Batch) Set(name string, values ...any) *SetBuilder {
	return &SetBuilder{b: b, prop: graph.NewProperty(name, values...)}
}

// On applies the change to the node at loc.
func (s *SetBuilder) On(loc graph.Location) *Batch {
	return s.b.add(request.NewUpdateProperties(loc, s.prop))
}

// RemoveBuilder names properties to remove. From adds it to the batch.
type RemoveBuilder struct {
	b     *Batch
	names []string
}

// Remove starts a property removal.
func (b *Batch) Remove(names ...string) *RemoveBuilder {
	return &RemoveBuilder{b: b, names: names}
}

// From applies the removal to the node at loc.
func (r *RemoveBuilder) From(loc graph.Location) *Batch {
	return r.b.add(request.NewRemoveProperties(loc, r.names...))
}

// MoveBuilder describes a move. Into adds it to the batch.
type MoveBuilder struct {
	b       *Batch
	from    graph.Location
	newName string
	before  *graph.Location
}

// Move starts describing a move of the branch at from.
func (b *Batch) Move(from graph.Location) *MoveBuilder {
	return &MoveBuilder{b: b, from: from}
}

// As renames the branch.
func (m *MoveBuilder) As(name string) *MoveBuilder {
	m.newName = name
	return m
}

// Before places the branch ahead of a sibling in the new parent.
func (m *MoveBuilder) Before(sibling graph.Location) *MoveBuilder {
	m.before = &sibling
	return m
}

// Into moves the branch under parent.
func (m *MoveBuilder) Into(parent graph.Location) *Batch {
	r := request.NewMoveBranch(m.from, parent, m.newName)
	r.Before = m.before
	return m.b.add(r)
}

// CopyBuilder describes a copy. Into adds it to the batch.
type CopyBuilder struct {
	b       *Batch
	from    graph.Location
	newName string
}

// Copy starts describing a copy of the branch at from.
func (b *Batch) Copy(from graph.Location) *CopyBuilder {
	return &CopyBuilder{b: b, from: from}
}

// As names the copy.
func (c *CopyBuilder) As(name string) *CopyBuilder {
	c.newName = name
	return c
}

// Into copies the branch under parent.
func (c *CopyBuilder) Into(parent graph.Location) *Batch {
	return c.b.add(request.NewCopyBranch(c.from, parent, c.newName))
}

// Execute sends every queued request as one unit and reconciles the
// results. It runs once; later calls return the same results. Failed
// requests leave partial results and the first failure is returned.
func (b *Batch) Execute() (*Results, error) {
	if b.executed {
		return b.results, b.err
	}
	b.executed = true
	if b.err != nil {
		return nil, b.err
	}
	if len(b.requests) == 0 {
		b.results = newResults()
		return b.results, nil
	}

	var r request.Request = b.requests[0]
	if len(b.requests) > 1 {
		r = request.NewComposite(b.requests...)
	}
	if err := b.g.exec.Execute(b.g.ctx, r); err != nil {
		b.err = b.g.wrap(err)
		return nil, b.err
	}
	b.results = newResults(r)
	if err := r.Err(); err != nil {
		b.err = b.g.wrap(err)
	}
	return b.results, b.err
}
