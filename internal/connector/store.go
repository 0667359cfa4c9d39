package connector

import (
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// StoredNode is what a store reports for one node.
type StoredNode struct {
	Path       graph.Path
	UUID       string
	Properties []graph.Property
	Children   []graph.Segment
}

// Location returns the node's location, carrying its UUID when known.
func (n *StoredNode) Location() graph.Location {
	loc := graph.At(n.Path)
	if n.UUID != "" {
		loc = loc.WithIDProperty(graph.NewProperty(graph.UUIDProperty, n.UUID))
	}
	return loc
}

// ChildLocations returns the children as locations below n.
func (n *StoredNode) ChildLocations() []graph.Location {
	out := make([]graph.Location, len(n.Children))
	for i, seg := range n.Children {
		out[i] = graph.At(n.Path.Child(seg))
	}
	return out
}

// Store is the read side every source implements.
type Store interface {
	// Node returns the node at p or graph.ErrPathNotFound.
	Node(p graph.Path) (*StoredNode, error)
}

// UUIDResolver is implemented by stores that can find nodes by UUID.
type UUIDResolver interface {
	PathOf(uuid string) (graph.Path, error)
}

// WritableStore is implemented by stores that accept changes. Every method
// is atomic with respect to the store.
type WritableStore interface {
	Store
	// CreateChild creates a child of parent and returns it.
	CreateChild(parent graph.Path, name string, props []graph.Property, conflict request.ConflictBehavior) (*StoredNode, error)
	// SetProperties sets properties; a property with no values is removed.
	SetProperties(p graph.Path, props []graph.Property) error
	// RemoveProperties removes properties by name; unknown names are ignored.
	RemoveProperties(p graph.Path, names []string) error
	// Move moves the subtree at from under into, optionally renamed and
	// optionally placed before a sibling, returning the new path.
	Move(from, into graph.Path, newName string, before *graph.Path) (graph.Path, error)
	// Copy copies the subtree at from under into and returns the copy's path.
	Copy(from, into graph.Path, newName string) (graph.Path, error)
	// Delete removes the subtree at p.
	Delete(p graph.Path) error
}
