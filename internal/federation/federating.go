package federation

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
)

// FederatingExecutor serves any number of projections. Reads are sent to
// every projection that maps the path, in declaration order, and merged:
// children are de-duplicated by segment keeping the first contributor's
// order, and properties from later projections replace earlier ones while
// keeping the position of the first occurrence. Ancestors of mount points
// exist as placeholder nodes. Writes go to exactly one projection.
type FederatingExecutor struct {
	projections []*projection.Projection
	factory     connector.ConnectionFactory
	parallel    bool
}

// NewFederatingExecutor returns an executor for cfg's contributing
// projections.
func NewFederatingExecutor(cfg *Config, factory connector.ConnectionFactory, parallel bool) *FederatingExecutor {
	return &FederatingExecutor{projections: cfg.Contributing(), factory: factory, parallel: parallel}
}

// Execute implements Executor.
func (e *FederatingExecutor) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	if err := admit(r); err != nil {
		return err
	}
	request.Process(e.newRun(ctx), r)
	return nil
}

func (e *FederatingExecutor) newRun(ctx *graph.ExecutionContext) *run {
	return &run{FederatingExecutor: e, ctx: ctx}
}

// run binds the executor to one execution context so it can serve as a
// request.Processor.
type run struct {
	*FederatingExecutor
	ctx *graph.ExecutionContext
}

// part is one projection's contribution to a merged node.
type part struct {
	found    bool
	uuid     string
	props    []graph.Property
	children []graph.Location
	err      error
}

type merged struct {
	loc      graph.Location
	props    *graph.Properties
	children []graph.Location
}

// readFrom reads the node at the source path src that proj maps to the
// repository path repo.
func (x *run) readFrom(proj *projection.Projection, repo, src graph.Path) part {
	s := request.NewReadNode(graph.At(src))
	connector.Execute(x.factory, proj.SourceName(), x.ctx, s)
	if err := s.Err(); err != nil {
		return part{err: err}
	}
	pt := part{found: true, props: s.Properties(), children: translator{proj}.below(repo, src, s.Children())}
	if loc, ok := s.ActualLocation(); ok {
		pt.uuid, _ = loc.UUID()
	}
	return pt
}

// readMerged reads the federated node at p.
func (x *run) readMerged(p graph.Path) (*merged, error) {
	parts := make([]part, len(x.projections))
	fetch := func(i int) {
		if src, ok := x.projections[i].ToSource(p); ok {
			parts[i] = x.readFrom(x.projections[i], p, src)
		}
	}
	if x.parallel {
		var g errgroup.Group
		for i := range parts {
			g.Go(func() error {
				fetch(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range parts {
			fetch(i)
		}
	}

	m := &merged{loc: graph.At(p), props: graph.NewProperties()}
	seen := map[string]bool{}
	add := func(c graph.Location) {
		if key := c.Key(); !seen[key] {
			seen[key] = true
			m.children = append(m.children, c)
		}
	}
	contributed := false
	for i, proj := range x.projections {
		pt := parts[i]
		if pt.err != nil && !graph.ErrPathNotFound.Is(pt.err) {
			return nil, pt.err
		}
		if pt.found {
			contributed = true
			if _, has := m.loc.UUID(); !has && pt.uuid != "" {
				m.loc = m.loc.WithIDProperty(graph.NewProperty(graph.UUIDProperty, pt.uuid))
			}
			for _, prop := range pt.props {
				m.props.Set(prop)
			}
			for _, c := range pt.children {
				add(c)
			}
		}
		for _, seg := range proj.PlaceholderChildren(p) {
			contributed = true
			add(graph.At(p.Child(seg)))
		}
	}
	if !contributed {
		return nil, graph.ErrPathNotFound.New(p, x.lowestKnown(p))
	}
	return m, nil
}

// lowestKnown returns the deepest ancestor of p that exists structurally:
// a placeholder or a mount point.
func (x *run) lowestKnown(p graph.Path) graph.Path {
	for i := p.Len() - 1; i > 0; i-- {
		a := p.Ancestor(i)
		for _, proj := range x.projections {
			if proj.IsPlaceholder(a) {
				return a
			}
			for _, rule := range proj.Rules() {
				if rule.RepositoryPath().Equal(a) {
					return a
				}
			}
		}
	}
	return graph.RootPath
}

// find asks every projection's source for a location without a path and
// returns the projections where it exists, with its repository path.
func (x *run) find(loc graph.Location) ([]*projection.Projection, []graph.Path) {
	var projs []*projection.Projection
	var paths []graph.Path
	for _, proj := range x.projections {
		s := request.NewReadNode(loc)
		connector.Execute(x.factory, proj.SourceName(), x.ctx, s)
		if s.HasError() {
			continue
		}
		actual, ok := s.ActualLocation()
		if !ok || !actual.HasPath() {
			continue
		}
		if p, ok := proj.ToRepository(actual.Path()); ok {
			projs = append(projs, proj)
			paths = append(paths, p)
		}
	}
	return projs, paths
}

// resolve returns the repository path of loc.
func (x *run) resolve(loc graph.Location) (graph.Path, error) {
	if loc.HasPath() {
		return loc.Path(), nil
	}
	_, paths := x.find(loc)
	if len(paths) == 0 {
		return graph.Path{}, graph.ErrPathNotFound.New(loc, graph.RootPath)
	}
	return paths[0], nil
}

// actualFor is the location reported for a merged node read through want.
func actualFor(want graph.Location, m *merged) graph.Location {
	if id, ok := want.UUID(); ok {
		return m.loc.WithoutIDProperties().WithIDProperty(graph.NewProperty(graph.UUIDProperty, id))
	}
	return m.loc
}

func (x *run) node(at graph.Location) (*merged, error) {
	p, err := x.resolve(at)
	if err != nil {
		return nil, err
	}
	return x.readMerged(p)
}

func (x *run) ReadNode(r *request.ReadNode) {
	m, err := x.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(actualFor(r.At, m)); err != nil {
		r.SetError(err)
		return
	}
	r.AddProperties(m.props.List()...)
	if err := r.SetChildren(m.children); err != nil {
		r.SetError(err)
	}
}

func (x *run) ReadAllProperties(r *request.ReadAllProperties) {
	m, err := x.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(actualFor(r.At, m)); err != nil {
		r.SetError(err)
		return
	}
	r.AddProperties(m.props.List()...)
	r.SetNumberOfChildren(len(m.children))
}

func (x *run) ReadProperty(r *request.ReadProperty) {
	m, err := x.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(actualFor(r.At, m)); err != nil {
		r.SetError(err)
		return
	}
	if prop, ok := m.props.Get(r.Name); ok {
		if err := r.SetProperty(prop); err != nil {
			r.SetError(err)
		}
	}
}

func (x *run) ReadAllChildren(r *request.ReadAllChildren) {
	m, err := x.node(r.Of)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(actualFor(r.Of, m)); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetChildren(m.children); err != nil {
		r.SetError(err)
	}
}

func (x *run) ReadBlockOfChildren(r *request.ReadBlockOfChildren) {
	m, err := x.node(r.Of)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(actualFor(r.Of, m)); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetChildren(connector.Window(m.children, r.StartingAtIndex, r.Count)); err != nil {
		r.SetError(err)
	}
}

func (x *run) ReadNextBlockOfChildren(r *request.ReadNextBlockOfChildren) {
	p, err := x.resolve(r.StartingAfter)
	if err != nil {
		r.SetError(err)
		return
	}
	if p.IsRoot() {
		if err := r.SetActualLocation(graph.At(p)); err != nil {
			r.SetError(err)
		}
		return
	}
	parent, err := x.readMerged(p.Parent())
	if err != nil {
		r.SetError(err)
		return
	}
	listed := false
	for _, c := range parent.children {
		if c.Path().Equal(p) {
			listed = true
			break
		}
	}
	if !listed {
		r.SetError(graph.ErrPathNotFound.New(p, p.Parent()))
		return
	}
	loc := graph.At(p)
	if id, ok := r.StartingAfter.UUID(); ok {
		loc = loc.WithIDProperty(graph.NewProperty(graph.UUIDProperty, id))
	}
	if err := r.SetActualLocation(loc); err != nil {
		r.SetError(err)
		return
	}
	for _, c := range connector.After(parent.children, p, r.Count) {
		if err := r.AddChild(c); err != nil {
			r.SetError(err)
			return
		}
	}
}

// ReadBranch walks the federated tree breadth first with merged node reads.
func (x *run) ReadBranch(r *request.ReadBranch) {
	root, err := x.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	rootLoc := actualFor(r.At, root)
	if err := r.SetActualLocation(rootLoc); err != nil {
		r.SetError(err)
		return
	}
	type item struct {
		loc   graph.Location
		node  *merged
		depth int
	}
	queue := []item{{loc: rootLoc, node: root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if err := r.AddNode(it.loc, it.node.props.List(), it.node.children); err != nil {
			r.SetError(err)
			return
		}
		if it.depth >= r.MaxDepth {
			continue
		}
		for _, c := range it.node.children {
			child, err := x.readMerged(c.Path())
			if graph.ErrPathNotFound.Is(err) {
				continue
			}
			if err != nil {
				r.SetError(err)
				return
			}
			queue = append(queue, item{loc: child.loc, node: child, depth: it.depth + 1})
		}
	}
}

// route picks the single projection a write at loc goes to and returns
// loc's repository path.
func (x *run) route(loc graph.Location) (*projection.Projection, graph.Path, error) {
	var hits []*projection.Projection
	var p graph.Path
	if loc.HasPath() {
		p = loc.Path()
		for _, proj := range x.projections {
			if _, ok := proj.ToSource(p); ok {
				hits = append(hits, proj)
			}
		}
		if len(hits) == 0 {
			for _, proj := range x.projections {
				if proj.IsPlaceholder(p) {
					return nil, p, ErrPlaceholderWrite.New(p)
				}
			}
			return nil, p, ErrNotProjectable.New(p, "no projection maps it")
		}
	} else {
		var found []graph.Path
		hits, found = x.find(loc)
		if len(hits) == 0 {
			return nil, p, graph.ErrPathNotFound.New(loc, graph.RootPath)
		}
		p = found[0]
	}
	if len(hits) > 1 {
		names := make([]string, len(hits))
		for i, h := range hits {
			names[i] = h.SourceName()
		}
		return nil, p, ErrNotProjectable.New(loc, fmt.Sprintf("it is projected by %d sources (%s)", len(hits), strings.Join(names, ", ")))
	}
	return hits[0], p, nil
}

// confine rejects a branch rooted at p when a projection other than the
// owners mounts content inside it. Such a branch spans sources.
func (x *run) confine(p graph.Path, inclusive bool, owners ...*projection.Projection) error {
	for _, proj := range x.projections {
		if slices.Contains(owners, proj) {
			continue
		}
		for _, rule := range proj.Rules() {
			mount := rule.RepositoryPath()
			if p.IsAncestorOf(mount) || (inclusive && p.Equal(mount)) {
				return ErrNotProjectable.New(p, fmt.Sprintf("the branch contains %s from source %s", mount, proj.SourceName()))
			}
		}
	}
	return nil
}

// forwardTo sends r, translated, to proj's source over one connection.
func (x *run) forwardTo(proj *projection.Projection, r request.Request) {
	f, ok := translator{proj}.translate(r)
	if !ok {
		r.SetError(ErrNotProjectable.New(r, "not mapped by source "+proj.SourceName()))
		return
	}
	connector.Execute(x.factory, proj.SourceName(), x.ctx, f.src)
	if err := f.complete(); err != nil {
		r.SetError(err)
	}
}

func (x *run) write(r request.Request, target graph.Location) {
	proj, _, err := x.route(target)
	if err != nil {
		r.SetError(err)
		return
	}
	x.forwardTo(proj, r)
}

// writeBranch routes a write that affects the whole branch at target.
func (x *run) writeBranch(r request.Request, target graph.Location) {
	proj, p, err := x.route(target)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := x.confine(p, false, proj); err != nil {
		r.SetError(err)
		return
	}
	x.forwardTo(proj, r)
}

// transfer routes a move or copy; both ends must live in the same source,
// and neither the moved branch nor its new position may hold another
// source's content.
func (x *run) transfer(r request.Request, verb string, from, into graph.Location, newName string) {
	pf, fromPath, err := x.route(from)
	if err != nil {
		r.SetError(err)
		return
	}
	pi, intoPath, err := x.route(into)
	if err != nil {
		r.SetError(err)
		return
	}
	if pf.SourceName() != pi.SourceName() {
		r.SetError(ErrCrossSourceOperation.New(verb, from, pf.SourceName(), into, pi.SourceName()))
		return
	}
	if err := x.confine(fromPath, false, pf, pi); err != nil {
		r.SetError(err)
		return
	}
	if newName == "" {
		last, _ := fromPath.Last()
		newName = last.Name
	}
	if err := x.confine(intoPath.ChildNamed(newName), true, pf, pi); err != nil {
		r.SetError(err)
		return
	}
	proj := pf
	if pf != pi {
		proj = projection.New(pf.SourceName(), pf.CachePolicy(), append(pf.Rules(), pi.Rules()...)...)
	}
	x.forwardTo(proj, r)
}

func (x *run) CreateNode(r *request.CreateNode) { x.write(r, r.Under) }

func (x *run) UpdateProperties(r *request.UpdateProperties) { x.write(r, r.On) }

func (x *run) RemoveProperties(r *request.RemoveProperties) { x.write(r, r.From) }

func (x *run) MoveBranch(r *request.MoveBranch) { x.transfer(r, "move", r.From, r.Into, r.NewName) }

func (x *run) CopyBranch(r *request.CopyBranch) { x.transfer(r, "copy", r.From, r.Into, r.NewName) }

func (x *run) DeleteBranch(r *request.DeleteBranch) { x.writeBranch(r, r.At) }

var _ request.Processor = (*run)(nil)
