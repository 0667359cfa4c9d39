// Package memory is a writable in-memory source. Nodes form a tree with
// ordered children; same-name siblings get their index from their position.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

type node struct {
	id       string
	name     string
	parent   *node
	props    *graph.Properties
	children []*node
}

// segment computes the node's segment from its position among siblings.
func (n *node) segment() graph.Segment {
	idx := 1
	if n.parent != nil {
		for _, sib := range n.parent.children {
			if sib == n {
				break
			}
			if sib.name == n.name {
				idx++
			}
		}
	}
	return graph.Segment{Name: n.name, Index: idx}
}

func (n *node) path() graph.Path {
	var segs []graph.Segment
	for cur := n; cur.parent != nil; cur = cur.parent {
		segs = append(segs, cur.segment())
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return graph.NewPath(segs...)
}

func (n *node) child(seg graph.Segment) *node {
	seen := 0
	for _, c := range n.children {
		if c.name == seg.Name {
			seen++
			if seen == seg.Index {
				return c
			}
		}
	}
	return nil
}

func (n *node) firstNamed(name string) *node {
	return n.child(graph.NewSegment(name))
}

func (n *node) indexOf(c *node) int {
	for i, x := range n.children {
		if x == c {
			return i
		}
	}
	return -1
}

func (n *node) isAtOrBelow(ancestor *node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (n *node) stored() *connector.StoredNode {
	out := &connector.StoredNode{
		Path:       n.path(),
		UUID:       n.id,
		Properties: n.props.List(),
		Children:   make([]graph.Segment, 0, len(n.children)),
	}
	for _, c := range n.children {
		out.Children = append(out.Children, c.segment())
	}
	return out
}

// Store is a thread-safe in-memory tree.
type Store struct {
	name   string
	mu     sync.RWMutex
	root   *node
	byUUID map[string]*node
}

// NewStore returns a store holding only a root node.
func NewStore(name string) *Store {
	root := &node{id: uuid.NewString(), props: graph.NewProperties()}
	return &Store{
		name:   name,
		root:   root,
		byUUID: map[string]*node{root.id: root},
	}
}

// NewSource wraps a new store as a connector source.
func NewSource(name string, opts ...connector.SourceOption) (*connector.StoreSource, *Store) {
	s := NewStore(name)
	return connector.NewStoreSource(name, s, opts...), s
}

// Name is the source name the store was created for.
func (s *Store) Name() string { return s.name }

// RootUUID returns the root node's identifier.
func (s *Store) RootUUID() string { return s.root.id }

// find walks p from the root. The error names the lowest existing ancestor.
func (s *Store) find(p graph.Path) (*node, error) {
	cur := s.root
	for i := 0; i < p.Len(); i++ {
		next := cur.child(p.Segment(i))
		if next == nil {
			return nil, graph.ErrPathNotFound.New(p, p.Ancestor(i))
		}
		cur = next
	}
	return cur, nil
}

// Put creates or updates the node at p, creating missing ancestors. It is a
// seeding helper; same-name-sibling indexes above 1 must already exist.
func (s *Store) Put(p graph.Path, props ...graph.Property) *connector.StoredNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.root
	for i := 0; i < p.Len(); i++ {
		seg := p.Segment(i)
		next := cur.child(seg)
		if next == nil {
			next = s.newNode(cur, seg.Name, nil)
			cur.children = append(cur.children, next)
		}
		cur = next
	}
	for _, prop := range props {
		cur.props.Set(prop)
	}
	return cur.stored()
}

func (s *Store) newNode(parent *node, name string, props []graph.Property) *node {
	n := &node{id: uuid.NewString(), name: name, parent: parent, props: graph.NewProperties(props...)}
	s.byUUID[n.id] = n
	return n
}

// Node implements connector.Store.
func (s *Store) Node(p graph.Path) (*connector.StoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.find(p)
	if err != nil {
		return nil, err
	}
	return n.stored(), nil
}

// PathOf implements connector.UUIDResolver.
func (s *Store) PathOf(id string) (graph.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byUUID[id]
	if !ok {
		return graph.Path{}, graph.ErrPathNotFound.New("uuid "+id, "/")
	}
	return n.path(), nil
}

// CreateChild implements connector.WritableStore.
func (s *Store) CreateChild(parent graph.Path, name string, props []graph.Property, conflict request.ConflictBehavior) (*connector.StoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.find(parent)
	if err != nil {
		return nil, err
	}
	if existing := p.firstNamed(name); existing != nil {
		switch conflict {
		case request.FailIfExists:
			return nil, graph.ErrNodeExists.New(existing.path())
		case request.DoNotReplace:
			return existing.stored(), nil
		case request.ReplaceExisting:
			for _, c := range existing.children {
				s.forget(c)
			}
			existing.children = nil
			existing.props = graph.NewProperties(props...)
			return existing.stored(), nil
		}
	}
	n := s.newNode(p, name, props)
	p.children = append(p.children, n)
	return n.stored(), nil
}

// SetProperties implements connector.WritableStore.
func (s *Store) SetProperties(p graph.Path, props []graph.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(p)
	if err != nil {
		return err
	}
	for _, prop := range props {
		if prop.IsEmpty() {
			n.props.Remove(prop.Name)
			continue
		}
		n.props.Set(prop)
	}
	return nil
}

// RemoveProperties implements connector.WritableStore.
func (s *Store) RemoveProperties(p graph.Path, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(p)
	if err != nil {
		return err
	}
	for _, name := range names {
		n.props.Remove(name)
	}
	return nil
}

// Move implements connector.WritableStore.
func (s *Store) Move(from, into graph.Path, newName string, before *graph.Path) (graph.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(from)
	if err != nil {
		return graph.Path{}, err
	}
	if n == s.root {
		return graph.Path{}, graph.ErrInvalidLocation.New(from, "the root cannot be moved")
	}
	target, err := s.find(into)
	if err != nil {
		return graph.Path{}, err
	}
	if target.isAtOrBelow(n) {
		return graph.Path{}, graph.ErrInvalidLocation.New(into, "cannot move "+from.String()+" below itself")
	}
	var anchor *node
	if before != nil {
		if anchor, err = s.find(*before); err != nil {
			return graph.Path{}, err
		}
		if anchor.parent != target {
			return graph.Path{}, graph.ErrInvalidLocation.New(*before, "not a child of "+into.String())
		}
	}

	old := n.parent
	old.children = append(old.children[:old.indexOf(n)], old.children[old.indexOf(n)+1:]...)
	n.parent = target
	if newName != "" {
		n.name = newName
	}
	if anchor != nil && anchor != n {
		i := target.indexOf(anchor)
		target.children = append(target.children[:i], append([]*node{n}, target.children[i:]...)...)
	} else {
		target.children = append(target.children, n)
	}
	return n.path(), nil
}

// Copy implements connector.WritableStore.
func (s *Store) Copy(from, into graph.Path, newName string) (graph.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(from)
	if err != nil {
		return graph.Path{}, err
	}
	target, err := s.find(into)
	if err != nil {
		return graph.Path{}, err
	}
	if target.isAtOrBelow(n) {
		return graph.Path{}, graph.ErrInvalidLocation.New(into, "cannot copy "+from.String()+" below itself")
	}
	c := s.clone(n, target)
	if newName != "" {
		c.name = newName
	}
	target.children = append(target.children, c)
	return c.path(), nil
}

func (s *Store) clone(n, parent *node) *node {
	c := s.newNode(parent, n.name, n.props.List())
	for _, child := range n.children {
		c.children = append(c.children, s.clone(child, c))
	}
	return c
}

// Delete implements connector.WritableStore.
func (s *Store) Delete(p graph.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.find(p)
	if err != nil {
		return err
	}
	if n == s.root {
		return graph.ErrInvalidLocation.New(p, "the root cannot be deleted")
	}
	parent := n.parent
	i := parent.indexOf(n)
	parent.children = append(parent.children[:i], parent.children[i+1:]...)
	s.forget(n)
	return nil
}

func (s *Store) forget(n *node) {
	delete(s.byUUID, n.id)
	for _, c := range n.children {
		s.forget(c)
	}
}

var (
	_ connector.WritableStore = (*Store)(nil)
	_ connector.UUIDResolver  = (*Store)(nil)
)
