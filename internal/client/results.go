package client

import (
	"github.com/benbjohnson/immutable"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// Node is a frozen snapshot of one node as read by a batch.
type Node struct {
	loc         graph.Location
	props       *graph.Properties
	children    []graph.Location
	hasChildren bool
}

func newNode(loc graph.Location) *Node {
	return &Node{loc: loc, props: graph.NewProperties()}
}

// Location returns the node's actual location.
func (n *Node) Location() graph.Location { return n.loc }

// Path returns the node's path.
func (n *Node) Path() graph.Path { return n.loc.Path() }

// Properties returns the properties read, in order.
func (n *Node) Properties() []graph.Property { return n.props.List() }

// Property returns one property.
func (n *Node) Property(name string) (graph.Property, bool) { return n.props.Get(name) }

// Children returns the children read, in order.
func (n *Node) Children() []graph.Location {
	out := make([]graph.Location, len(n.children))
	copy(out, n.children)
	return out
}

// ChildrenRead reports whether the children of the node were read.
func (n *Node) ChildrenRead() bool { return n.hasChildren }

func (n *Node) String() string { return n.loc.String() }

// pathComparer orders graph.Path keys.
type pathComparer struct{}

func (pathComparer) Compare(a, b interface{}) int {
	return a.(graph.Path).Compare(b.(graph.Path))
}

// Results is the immutable outcome of an executed batch: every node touched
// by a read, indexed by path, plus the actual locations of writes.
type Results struct {
	nodes   *immutable.SortedMap
	byUUID  map[string]graph.Path
	written []graph.Location
}

// builder accumulates nodes before they are frozen into Results.
type builder struct {
	nodes   map[string]*Node
	paths   []graph.Path
	written []graph.Location
}

func (b *builder) node(loc graph.Location) *Node {
	key := loc.Path().String()
	n, ok := b.nodes[key]
	if !ok {
		n = newNode(loc)
		b.nodes[key] = n
		b.paths = append(b.paths, loc.Path())
		return n
	}
	if _, has := n.loc.UUID(); !has {
		if id, ok := loc.UUID(); ok {
			n.loc = n.loc.WithIDProperty(graph.NewProperty(graph.UUIDProperty, id))
		}
	}
	return n
}

func (b *builder) setChildren(n *Node, children []graph.Location) {
	n.children = append([]graph.Location(nil), children...)
	n.hasChildren = true
}

func (b *builder) addChildren(n *Node, children []graph.Location) {
	for _, c := range children {
		dup := false
		for _, have := range n.children {
			if have.Key() == c.Key() {
				dup = true
				break
			}
		}
		if !dup {
			n.children = append(n.children, c)
		}
	}
}

// add folds one executed request into the builder. Failed requests
// contribute nothing.
func (b *builder) add(r request.Request) {
	if r.HasError() {
		return
	}
	switch req := r.(type) {
	case *request.ReadNode:
		if loc, ok := req.ActualLocation(); ok {
			n := b.node(loc)
			for _, p := range req.Properties() {
				n.props.Set(p)
			}
			b.setChildren(n, req.Children())
		}
	case *request.ReadAllProperties:
		if loc, ok := req.ActualLocation(); ok {
			n := b.node(loc)
			for _, p := range req.Properties() {
				n.props.Set(p)
			}
		}
	case *request.ReadProperty:
		if loc, ok := req.ActualLocation(); ok {
			n := b.node(loc)
			if p, ok := req.Property(); ok {
				n.props.Set(p)
			}
		}
	case *request.ReadAllChildren:
		if loc, ok := req.ActualLocation(); ok {
			b.setChildren(b.node(loc), req.Children())
		}
	case *request.ReadBlockOfChildren:
		if loc, ok := req.ActualLocation(); ok {
			n := b.node(loc)
			b.addChildren(n, req.Children())
		}
	case *request.ReadNextBlockOfChildren:
		if loc, ok := req.ActualLocation(); ok && !loc.Path().IsRoot() {
			b.addChildren(b.node(graph.At(loc.Path().Parent())), req.Children())
		}
	case *request.ReadBranch:
		for _, bn := range req.Nodes() {
			n := b.node(bn.Location)
			for _, p := range bn.Properties {
				n.props.Set(p)
			}
			b.setChildren(n, bn.Children)
		}
	case *request.CreateNode:
		b.record(req.ActualLocation())
	case *request.UpdateProperties:
		b.record(req.ActualLocation())
	case *request.RemoveProperties:
		b.record(req.ActualLocation())
	case *request.MoveBranch:
		b.record(req.ActualNewLocation())
	case *request.CopyBranch:
		b.record(req.ActualCopyLocation())
	case *request.DeleteBranch:
		b.record(req.ActualLocation())
	case *request.Composite:
		for _, sub := range req.Requests() {
			b.add(sub)
		}
	}
}

func (b *builder) record(loc graph.Location, ok bool) {
	if ok {
		b.written = append(b.written, loc)
	}
}

func (b *builder) freeze() *Results {
	m := immutable.NewSortedMap(pathComparer{})
	byUUID := map[string]graph.Path{}
	for _, p := range b.paths {
		n := b.nodes[p.String()]
		m = m.Set(p, n)
		if id, ok := n.loc.UUID(); ok {
			byUUID[id] = p
		}
	}
	return &Results{nodes: m, byUUID: byUUID, written: b.written}
}

// newResults builds results from executed requests.
func newResults(reqs ...request.Request) *Results {
	b := &builder{nodes: map[string]*Node{}}
	for _, r := range reqs {
		b.add(r)
	}
	return b.freeze()
}

// Len is the number of nodes.
func (r *Results) Len() int { return r.nodes.Len() }

// Node returns the node at p.
func (r *Results) Node(p graph.Path) (*Node, bool) {
	v, ok := r.nodes.Get(p)
	if !ok {
		return nil, false
	}
	return v.(*Node), true
}

// NodeAt returns the node identified by loc, by path or else by UUID.
func (r *Results) NodeAt(loc graph.Location) (*Node, bool) {
	if loc.HasPath() {
		return r.Node(loc.Path())
	}
	if id, ok := loc.UUID(); ok {
		if p, ok := r.byUUID[id]; ok {
			return r.Node(p)
		}
	}
	return nil, false
}

// Includes reports whether a node at p was read.
func (r *Results) Includes(p graph.Path) bool {
	_, ok := r.nodes.Get(p)
	return ok
}

// IncludesLocation reports whether the node identified by loc was read.
func (r *Results) IncludesLocation(loc graph.Location) bool {
	_, ok := r.NodeAt(loc)
	return ok
}

// Each calls fn for every node in path order until fn returns false.
func (r *Results) Each(fn func(*Node) bool) {
	itr := r.nodes.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		if !fn(v.(*Node)) {
			return
		}
	}
}

// Paths returns every node path in order.
func (r *Results) Paths() []graph.Path {
	out := make([]graph.Path, 0, r.nodes.Len())
	r.Each(func(n *Node) bool {
		out = append(out, n.Path())
		return true
	})
	return out
}

// Below returns the nodes at or below p in path order.
func (r *Results) Below(p graph.Path) []*Node {
	var out []*Node
	r.Each(func(n *Node) bool {
		if n.Path().IsAtOrBelow(p) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Written returns the actual locations of the write requests that
// succeeded, in execution order. Moves and copies report the new location.
func (r *Results) Written() []graph.Location {
	out := make([]graph.Location, len(r.written))
	copy(out, r.written)
	return out
}

// Subgraph is a branch read: a root plus the nodes below it down to a depth.
type Subgraph struct {
	root    graph.Path
	depth   int
	results *Results
}

// Root returns the subgraph's root node.
func (s *Subgraph) Root() *Node {
	n, _ := s.results.Node(s.root)
	return n
}

// Depth is the depth the subgraph was read to.
func (s *Subgraph) Depth() int { return s.depth }

// Node returns a node of the subgraph by absolute path.
func (s *Subgraph) Node(p graph.Path) (*Node, bool) {
	if !p.IsAtOrBelow(s.root) {
		return nil, false
	}
	return s.results.Node(p)
}

// Len is the number of nodes in the subgraph.
func (s *Subgraph) Len() int { return s.results.Len() }

// Each visits the nodes in path order until fn returns false.
func (s *Subgraph) Each(fn func(*Node) bool) { s.results.Each(fn) }
