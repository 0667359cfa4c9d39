package request

import (
	"fmt"

	"github.com/agentic-research/fedgraph/internal/graph"
)

// nodeData accumulates the properties and children reported for one node.
type nodeData struct {
	owner    *base
	anchor   func() graph.Location
	props    *graph.Properties
	children []graph.Location
}

func (d *nodeData) init(owner *base, anchor func() graph.Location) {
	d.owner = owner
	d.anchor = anchor
	d.props = graph.NewProperties()
}

// Properties returns the properties in the order they were reported.
func (d *nodeData) Properties() []graph.Property { return d.props.List() }

// PropertyBag returns a copy of the properties as a bag.
func (d *nodeData) PropertyBag() *graph.Properties { return d.props.Clone() }

// Property returns one property by name.
func (d *nodeData) Property(name string) (graph.Property, bool) { return d.props.Get(name) }

// AddProperties records properties, replacing any with the same name.
func (d *nodeData) AddProperties(props ...graph.Property) {
	d.owner.checkMutable()
	for _, p := range props {
		d.props.Set(p)
	}
}

// Children returns the child locations in order.
func (d *nodeData) Children() []graph.Location {
	out := make([]graph.Location, len(d.children))
	copy(out, d.children)
	return out
}

// AddChild records a child. The child must lie directly below the node.
func (d *nodeData) AddChild(child graph.Location) error {
	d.owner.checkMutable()
	if err := checkChildOf(d.owner.kind, d.anchor(), child); err != nil {
		return err
	}
	d.children = append(d.children, child)
	return nil
}

// SetChildren replaces the child list after checking every entry.
func (d *nodeData) SetChildren(children []graph.Location) error {
	d.owner.checkMutable()
	for _, c := range children {
		if err := checkChildOf(d.owner.kind, d.anchor(), c); err != nil {
			return err
		}
	}
	d.children = append(d.children[:0:0], children...)
	return nil
}

// ReadNode reads the properties and children of one node.
type ReadNode struct {
	base
	nodeData
	At     graph.Location
	actual actual
}

// NewReadNode returns a request for the node at loc.
func NewReadNode(at graph.Location) *ReadNode {
	r := &ReadNode{base: base{kind: "ReadNode"}, At: at}
	r.nodeData.init(&r.base, r.anchorLocation)
	return r
}

func (r *ReadNode) anchorLocation() graph.Location {
	if loc, ok := r.actual.get(); ok {
		return loc
	}
	return r.At
}

func (r *ReadNode) IsReadOnly() bool { return true }

// ActualLocation returns the location reported by the executor.
func (r *ReadNode) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the node's actual location.
func (r *ReadNode) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.At, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *ReadNode) String() string { return fmt.Sprintf("read node at %s", r.At) }

// ReadAllProperties reads every property of one node.
type ReadAllProperties struct {
	base
	nodeData
	At          graph.Location
	actual      actual
	numChildren int
}

// NewReadAllProperties returns a request for the properties at loc.
func NewReadAllProperties(at graph.Location) *ReadAllProperties {
	r := &ReadAllProperties{base: base{kind: "ReadAllProperties"}, At: at, numChildren: -1}
	r.nodeData.init(&r.base, func() graph.Location { return r.At })
	return r
}

func (r *ReadAllProperties) IsReadOnly() bool { return true }

// ActualLocation returns the location reported by the executor.
func (r *ReadAllProperties) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the node's actual location.
func (r *ReadAllProperties) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.At, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

// NumberOfChildren is the child count when the source reported one, else -1.
func (r *ReadAllProperties) NumberOfChildren() int { return r.numChildren }

// SetNumberOfChildren records the child count.
func (r *ReadAllProperties) SetNumberOfChildren(n int) {
	r.checkMutable()
	r.numChildren = n
}

func (r *ReadAllProperties) String() string {
	return fmt.Sprintf("read properties at %s", r.At)
}

// ReadProperty reads a single named property.
type ReadProperty struct {
	base
	At       graph.Location
	Name     string
	actual   actual
	property *graph.Property
}

// NewReadProperty returns a request for property name at loc.
func NewReadProperty(at graph.Location, name string) *ReadProperty {
	return &ReadProperty{base: base{kind: "ReadProperty"}, At: at, Name: name}
}

func (r *ReadProperty) IsReadOnly() bool { return true }

// ActualLocation returns the location reported by the executor.
func (r *ReadProperty) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the node's actual location.
func (r *ReadProperty) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.At, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

// Property returns the property read, if the node had it.
func (r *ReadProperty) Property() (graph.Property, bool) {
	if r.property == nil {
		return graph.Property{}, false
	}
	return r.property.Clone(), true
}

// SetProperty records the property. Its name must match the request.
func (r *ReadProperty) SetProperty(p graph.Property) error {
	r.checkMutable()
	if p.Name != r.Name {
		return inconsistent(r.kind, "asked for property %q but source answered %q", r.Name, p.Name)
	}
	c := p.Clone()
	r.property = &c
	return nil
}

func (r *ReadProperty) String() string {
	return fmt.Sprintf("read property %s at %s", r.Name, r.At)
}

// ReadAllChildren lists the children of one node.
type ReadAllChildren struct {
	base
	nodeData
	Of     graph.Location
	actual actual
}

// NewReadAllChildren returns a request for the children of loc.
func NewReadAllChildren(of graph.Location) *ReadAllChildren {
	r := &ReadAllChildren{base: base{kind: "ReadAllChildren"}, Of: of}
	r.nodeData.init(&r.base, func() graph.Location {
		if loc, ok := r.actual.get(); ok {
			return loc
		}
		return r.Of
	})
	return r
}

func (r *ReadAllChildren) IsReadOnly() bool { return true }

// ActualLocation returns the parent's actual location.
func (r *ReadAllChildren) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the parent's actual location.
func (r *ReadAllChildren) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.Of, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *ReadAllChildren) String() string { return fmt.Sprintf("read children of %s", r.Of) }

// ReadBlockOfChildren lists a window of a node's children.
type ReadBlockOfChildren struct {
	base
	nodeData
	Of              graph.Location
	StartingAtIndex int
	Count           int
	actual          actual
}

// NewReadBlockOfChildren returns a request for count children of loc
// starting at the zero-based index start.
func NewReadBlockOfChildren(of graph.Location, start, count int) *ReadBlockOfChildren {
	r := &ReadBlockOfChildren{base: base{kind: "ReadBlockOfChildren"}, Of: of, StartingAtIndex: start, Count: count}
	r.nodeData.init(&r.base, func() graph.Location {
		if loc, ok := r.actual.get(); ok {
			return loc
		}
		return r.Of
	})
	return r
}

func (r *ReadBlockOfChildren) IsReadOnly() bool { return true }

// ActualLocation returns the parent's actual location.
func (r *ReadBlockOfChildren) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the parent's actual location.
func (r *ReadBlockOfChildren) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.Of, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *ReadBlockOfChildren) String() string {
	return fmt.Sprintf("read %d children of %s from %d", r.Count, r.Of, r.StartingAtIndex)
}

// ReadNextBlockOfChildren lists up to Count siblings following a given node.
type ReadNextBlockOfChildren struct {
	base
	StartingAfter graph.Location
	Count         int
	actual        actual
	children      []graph.Location
}

// NewReadNextBlockOfChildren returns a request for the count siblings after loc.
func NewReadNextBlockOfChildren(after graph.Location, count int) *ReadNextBlockOfChildren {
	return &ReadNextBlockOfChildren{base: base{kind: "ReadNextBlockOfChildren"}, StartingAfter: after, Count: count}
}

func (r *ReadNextBlockOfChildren) IsReadOnly() bool { return true }

// ActualLocation returns the actual location of the StartingAfter node.
func (r *ReadNextBlockOfChildren) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the actual location of the StartingAfter node.
func (r *ReadNextBlockOfChildren) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.StartingAfter, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

// Children returns the siblings read.
func (r *ReadNextBlockOfChildren) Children() []graph.Location {
	out := make([]graph.Location, len(r.children))
	copy(out, r.children)
	return out
}

// AddChild records a sibling; it must share the StartingAfter node's parent.
func (r *ReadNextBlockOfChildren) AddChild(child graph.Location) error {
	r.checkMutable()
	anchor := r.StartingAfter
	if loc, ok := r.actual.get(); ok {
		anchor = loc
	}
	if anchor.HasPath() {
		if err := checkChildOf(r.kind, graph.At(anchor.Path().Parent()), child); err != nil {
			return err
		}
	}
	r.children = append(r.children, child)
	return nil
}

func (r *ReadNextBlockOfChildren) String() string {
	return fmt.Sprintf("read %d children after %s", r.Count, r.StartingAfter)
}

// BranchNode is one node of a branch read.
type BranchNode struct {
	Location   graph.Location
	Properties []graph.Property
	Children   []graph.Location
}

// ReadBranch reads a node and its descendants down to MaxDepth levels.
// MaxDepth 0 reads only the node itself.
type ReadBranch struct {
	base
	At       graph.Location
	MaxDepth int
	actual   actual
	nodes    []BranchNode
	index    map[string]int
}

// DefaultBranchDepth is used when callers do not choose a depth.
const DefaultBranchDepth = 2

// NewReadBranch returns a branch read rooted at loc.
func NewReadBranch(at graph.Location, maxDepth int) *ReadBranch {
	return &ReadBranch{base: base{kind: "ReadBranch"}, At: at, MaxDepth: maxDepth, index: map[string]int{}}
}

func (r *ReadBranch) IsReadOnly() bool { return true }

// ActualLocation returns the branch root's actual location.
func (r *ReadBranch) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the branch root's actual location.
func (r *ReadBranch) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.At, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

// AddNode records one node of the branch. It must lie at or below the root
// and within MaxDepth; adding the same path again replaces the entry.
func (r *ReadBranch) AddNode(loc graph.Location, props []graph.Property, children []graph.Location) error {
	r.checkMutable()
	if !loc.HasPath() {
		return inconsistent(r.kind, "branch node %s has no path", loc)
	}
	root := r.At
	if a, ok := r.actual.get(); ok {
		root = a
	}
	if root.HasPath() {
		if !loc.Path().IsAtOrBelow(root.Path()) {
			return inconsistent(r.kind, "%s is outside the branch at %s", loc.Path(), root.Path())
		}
		if loc.Path().Len()-root.Path().Len() > r.MaxDepth {
			return inconsistent(r.kind, "%s is deeper than %d levels below %s", loc.Path(), r.MaxDepth, root.Path())
		}
	}
	for _, c := range children {
		if err := checkChildOf(r.kind, loc, c); err != nil {
			return err
		}
	}
	n := BranchNode{
		Location:   loc,
		Properties: graph.NewProperties(props...).List(),
		Children:   append([]graph.Location(nil), children...),
	}
	key := loc.Path().String()
	if i, ok := r.index[key]; ok {
		r.nodes[i] = n
		return nil
	}
	r.index[key] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return nil
}

// Nodes returns the branch nodes in the order they were added.
func (r *ReadBranch) Nodes() []BranchNode {
	out := make([]BranchNode, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Node returns the branch node at p.
func (r *ReadBranch) Node(p graph.Path) (BranchNode, bool) {
	i, ok := r.index[p.String()]
	if !ok {
		return BranchNode{}, false
	}
	return r.nodes[i], true
}

func (r *ReadBranch) String() string {
	return fmt.Sprintf("read branch at %s to depth %d", r.At, r.MaxDepth)
}
