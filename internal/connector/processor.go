package connector

import (
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// StoreProcessor answers every request type from a Store. Writes require the
// store to implement WritableStore; otherwise they fail with
// graph.ErrReadOnlySource.
type StoreProcessor struct {
	name  string
	store Store
}

// NewStoreProcessor returns a processor for the named source's store.
func NewStoreProcessor(sourceName string, store Store) *StoreProcessor {
	return &StoreProcessor{name: sourceName, store: store}
}

// resolve turns a location into a path, using the UUID when no path is given.
func (p *StoreProcessor) resolve(loc graph.Location) (graph.Path, error) {
	if loc.HasPath() {
		return loc.Path(), nil
	}
	if id, ok := loc.UUID(); ok {
		if res, ok := p.store.(UUIDResolver); ok {
			return res.PathOf(id)
		}
	}
	return graph.Path{}, graph.ErrInvalidLocation.New(loc, "source "+p.name+" needs a path")
}

func (p *StoreProcessor) node(loc graph.Location) (*StoredNode, error) {
	path, err := p.resolve(loc)
	if err != nil {
		return nil, err
	}
	return p.store.Node(path)
}

func (p *StoreProcessor) writable() (WritableStore, error) {
	w, ok := p.store.(WritableStore)
	if !ok {
		return nil, graph.ErrReadOnlySource.New(p.name)
	}
	return w, nil
}

func (p *StoreProcessor) ReadNode(r *request.ReadNode) {
	n, err := p.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	r.AddProperties(n.Properties...)
	if err := r.SetChildren(n.ChildLocations()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) ReadAllProperties(r *request.ReadAllProperties) {
	n, err := p.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	r.AddProperties(n.Properties...)
	r.SetNumberOfChildren(len(n.Children))
}

func (p *StoreProcessor) ReadProperty(r *request.ReadProperty) {
	n, err := p.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	for _, prop := range n.Properties {
		if prop.Name == r.Name {
			if err := r.SetProperty(prop); err != nil {
				r.SetError(err)
			}
			return
		}
	}
}

func (p *StoreProcessor) ReadAllChildren(r *request.ReadAllChildren) {
	n, err := p.node(r.Of)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetChildren(n.ChildLocations()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) ReadBlockOfChildren(r *request.ReadBlockOfChildren) {
	n, err := p.node(r.Of)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetChildren(Window(n.ChildLocations(), r.StartingAtIndex, r.Count)); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) ReadNextBlockOfChildren(r *request.ReadNextBlockOfChildren) {
	n, err := p.node(r.StartingAfter)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
		return
	}
	if n.Path.IsRoot() {
		return
	}
	parent, err := p.store.Node(n.Path.Parent())
	if err != nil {
		r.SetError(err)
		return
	}
	for _, c := range After(parent.ChildLocations(), n.Path, r.Count) {
		if err := r.AddChild(c); err != nil {
			r.SetError(err)
			return
		}
	}
}

func (p *StoreProcessor) ReadBranch(r *request.ReadBranch) {
	root, err := p.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(root.Location()); err != nil {
		r.SetError(err)
		return
	}
	type item struct {
		node  *StoredNode
		depth int
	}
	queue := []item{{node: root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if err := r.AddNode(it.node.Location(), it.node.Properties, it.node.ChildLocations()); err != nil {
			r.SetError(err)
			return
		}
		if it.depth >= r.MaxDepth {
			continue
		}
		for _, seg := range it.node.Children {
			child, err := p.store.Node(it.node.Path.Child(seg))
			if err != nil {
				r.SetError(err)
				return
			}
			queue = append(queue, item{node: child, depth: it.depth + 1})
		}
	}
}

func (p *StoreProcessor) CreateNode(r *request.CreateNode) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	parent, err := p.resolve(r.Under)
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := w.CreateChild(parent, r.ChildName, r.Properties, r.Conflict)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) UpdateProperties(r *request.UpdateProperties) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := p.node(r.On)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := w.SetProperties(n.Path, r.Properties()); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) RemoveProperties(r *request.RemoveProperties) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := p.node(r.From)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := w.RemoveProperties(n.Path, r.Names); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) MoveBranch(r *request.MoveBranch) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := p.node(r.From)
	if err != nil {
		r.SetError(err)
		return
	}
	into, err := p.resolve(r.Into)
	if err != nil {
		r.SetError(err)
		return
	}
	var before *graph.Path
	if r.Before != nil {
		b, err := p.resolve(*r.Before)
		if err != nil {
			r.SetError(err)
			return
		}
		before = &b
	}
	newPath, err := w.Move(n.Path, into, r.NewName, before)
	if err != nil {
		r.SetError(err)
		return
	}
	newLoc := graph.At(newPath)
	if n.UUID != "" {
		newLoc = newLoc.WithIDProperty(graph.NewProperty(graph.UUIDProperty, n.UUID))
	}
	if err := r.SetActualLocations(n.Location(), newLoc); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) CopyBranch(r *request.CopyBranch) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := p.node(r.From)
	if err != nil {
		r.SetError(err)
		return
	}
	into, err := p.resolve(r.Into)
	if err != nil {
		r.SetError(err)
		return
	}
	copyPath, err := w.Copy(n.Path, into, r.NewName)
	if err != nil {
		r.SetError(err)
		return
	}
	copied, err := p.store.Node(copyPath)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocations(n.Location(), copied.Location()); err != nil {
		r.SetError(err)
	}
}

func (p *StoreProcessor) DeleteBranch(r *request.DeleteBranch) {
	w, err := p.writable()
	if err != nil {
		r.SetError(err)
		return
	}
	n, err := p.node(r.At)
	if err != nil {
		r.SetError(err)
		return
	}
	if err := w.Delete(n.Path); err != nil {
		r.SetError(err)
		return
	}
	if err := r.SetActualLocation(n.Location()); err != nil {
		r.SetError(err)
	}
}

// Window returns children[start:start+count], clamped to the list.
func Window(children []graph.Location, start, count int) []graph.Location {
	if start < 0 {
		start = 0
	}
	if start >= len(children) || count <= 0 {
		return nil
	}
	end := start + count
	if end > len(children) {
		end = len(children)
	}
	return children[start:end]
}

// After returns up to count entries following the child at p.
func After(children []graph.Location, p graph.Path, count int) []graph.Location {
	for i, c := range children {
		if c.HasPath() && c.Path().Equal(p) {
			return Window(children, i+1, count)
		}
	}
	return nil
}

var _ request.Processor = (*StoreProcessor)(nil)
