package request

import (
	"fmt"
	"strings"

	"github.com/agentic-research/fedgraph/internal/graph"
)

// ConflictBehavior decides what a create does when a child with the same
// name already exists.
type ConflictBehavior int

const (
	// AppendSibling adds a same-name sibling with the next index.
	AppendSibling ConflictBehavior = iota
	// ReplaceExisting replaces the existing node's properties and children.
	ReplaceExisting
	// DoNotReplace leaves the existing node and reports its location.
	DoNotReplace
	// FailIfExists fails the request.
	FailIfExists
)

func (c ConflictBehavior) String() string {
	switch c {
	case AppendSibling:
		return "append"
	case ReplaceExisting:
		return "replace"
	case DoNotReplace:
		return "keep"
	case FailIfExists:
		return "fail"
	}
	return fmt.Sprintf("ConflictBehavior(%d)", int(c))
}

// CreateNode creates a child named ChildName under a parent.
type CreateNode struct {
	base
	Under      graph.Location
	ChildName  string
	Properties []graph.Property
	Conflict   ConflictBehavior
	actual     actual
}

// NewCreateNode returns a create request.
func NewCreateNode(under graph.Location, name string, props ...graph.Property) *CreateNode {
	return &CreateNode{
		base:       base{kind: "CreateNode"},
		Under:      under,
		ChildName:  name,
		Properties: append([]graph.Property(nil), props...),
	}
}

func (r *CreateNode) IsReadOnly() bool { return false }

// ActualLocation returns the created node's location.
func (r *CreateNode) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the created node; it must be a child of Under
// named ChildName.
func (r *CreateNode) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkPlacedChild(r.kind, r.Under, r.ChildName, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *CreateNode) String() string {
	return fmt.Sprintf("create %s under %s", r.ChildName, r.Under)
}

// UpdateProperties sets properties on one node. A property with no values
// removes it.
type UpdateProperties struct {
	base
	On     graph.Location
	actual actual
	props  *graph.Properties
}

// NewUpdateProperties returns an update request.
func NewUpdateProperties(on graph.Location, props ...graph.Property) *UpdateProperties {
	return &UpdateProperties{base: base{kind: "UpdateProperties"}, On: on, props: graph.NewProperties(props...)}
}

func (r *UpdateProperties) IsReadOnly() bool { return false }

// Properties returns the changes in order.
func (r *UpdateProperties) Properties() []graph.Property { return r.props.List() }

// Set adds a change before submission.
func (r *UpdateProperties) Set(props ...graph.Property) {
	r.checkMutable()
	for _, p := range props {
		r.props.Set(p)
	}
}

// CanMerge reports whether other targets the identical location and neither
// request has been submitted yet.
func (r *UpdateProperties) CanMerge(other *UpdateProperties) bool {
	if r.State() != Created || other.State() != Created {
		return false
	}
	return r.On.String() == other.On.String()
}

// Merge folds other's changes into r: last write wins per name and the
// position of a name's first occurrence is kept.
func (r *UpdateProperties) Merge(other *UpdateProperties) {
	r.checkMutable()
	r.props.Merge(other.props)
}

// ActualLocation returns the node's actual location.
func (r *UpdateProperties) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the node's actual location.
func (r *UpdateProperties) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.On, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *UpdateProperties) String() string {
	return fmt.Sprintf("update %s on %s", strings.Join(r.props.Names(), ","), r.On)
}

// RemoveProperties removes named properties from one node.
type RemoveProperties struct {
	base
	From   graph.Location
	Names  []string
	actual actual
}

// NewRemoveProperties returns a removal request.
func NewRemoveProperties(from graph.Location, names ...string) *RemoveProperties {
	return &RemoveProperties{base: base{kind: "RemoveProperties"}, From: from, Names: append([]string(nil), names...)}
}

func (r *RemoveProperties) IsReadOnly() bool { return false }

// ActualLocation returns the node's actual location.
func (r *RemoveProperties) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the node's actual location.
func (r *RemoveProperties) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.From, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *RemoveProperties) String() string {
	return fmt.Sprintf("remove %s from %s", strings.Join(r.Names, ","), r.From)
}

// MoveBranch moves a node (and its subtree) under a new parent, optionally
// renaming it and optionally placing it before an existing sibling.
type MoveBranch struct {
	base
	From    graph.Location
	Into    graph.Location
	NewName string
	Before  *graph.Location
	oldLoc  actual
	newLoc  actual
}

// NewMoveBranch returns a move request. An empty newName keeps the name.
func NewMoveBranch(from, into graph.Location, newName string) *MoveBranch {
	return &MoveBranch{base: base{kind: "MoveBranch"}, From: from, Into: into, NewName: newName}
}

func (r *MoveBranch) IsReadOnly() bool { return false }

// ActualLocation returns the node's location before the move.
func (r *MoveBranch) ActualLocation() (graph.Location, bool) { return r.oldLoc.get() }

// ActualNewLocation returns the node's location after the move.
func (r *MoveBranch) ActualNewLocation() (graph.Location, bool) { return r.newLoc.get() }

// SetActualLocations records both ends of the move. The new location must be
// a child of Into carrying the expected name.
func (r *MoveBranch) SetActualLocations(oldLoc, newLoc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.From, oldLoc); err != nil {
		return err
	}
	if err := checkPlacedChild(r.kind, r.Into, r.expectedName(oldLoc), newLoc); err != nil {
		return err
	}
	r.oldLoc = actual{loc: oldLoc, set: true}
	r.newLoc = actual{loc: newLoc, set: true}
	return nil
}

func (r *MoveBranch) expectedName(oldLoc graph.Location) string {
	if r.NewName != "" {
		return r.NewName
	}
	if last, ok := oldLoc.Path().Last(); ok {
		return last.Name
	}
	return ""
}

func (r *MoveBranch) String() string {
	if r.NewName != "" {
		return fmt.Sprintf("move %s into %s as %s", r.From, r.Into, r.NewName)
	}
	return fmt.Sprintf("move %s into %s", r.From, r.Into)
}

// CopyBranch copies a node (and its subtree) under a new parent.
type CopyBranch struct {
	base
	From    graph.Location
	Into    graph.Location
	NewName string
	fromLoc actual
	copyLoc actual
}

// NewCopyBranch returns a copy request. An empty newName keeps the name.
func NewCopyBranch(from, into graph.Location, newName string) *CopyBranch {
	return &CopyBranch{base: base{kind: "CopyBranch"}, From: from, Into: into, NewName: newName}
}

func (r *CopyBranch) IsReadOnly() bool { return false }

// ActualLocation returns the original node's location.
func (r *CopyBranch) ActualLocation() (graph.Location, bool) { return r.fromLoc.get() }

// ActualCopyLocation returns the new copy's location.
func (r *CopyBranch) ActualCopyLocation() (graph.Location, bool) { return r.copyLoc.get() }

// SetActualLocations records the original and the copy. The copy must be a
// child of Into carrying the expected name.
func (r *CopyBranch) SetActualLocations(from, copied graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.From, from); err != nil {
		return err
	}
	name := r.NewName
	if name == "" {
		if last, ok := from.Path().Last(); ok {
			name = last.Name
		}
	}
	if err := checkPlacedChild(r.kind, r.Into, name, copied); err != nil {
		return err
	}
	r.fromLoc = actual{loc: from, set: true}
	r.copyLoc = actual{loc: copied, set: true}
	return nil
}

func (r *CopyBranch) String() string {
	return fmt.Sprintf("copy %s into %s", r.From, r.Into)
}

// DeleteBranch deletes a node and its subtree.
type DeleteBranch struct {
	base
	At     graph.Location
	actual actual
}

// NewDeleteBranch returns a delete request.
func NewDeleteBranch(at graph.Location) *DeleteBranch {
	return &DeleteBranch{base: base{kind: "DeleteBranch"}, At: at}
}

func (r *DeleteBranch) IsReadOnly() bool { return false }

// ActualLocation returns the deleted node's location.
func (r *DeleteBranch) ActualLocation() (graph.Location, bool) { return r.actual.get() }

// SetActualLocation records the deleted node's location.
func (r *DeleteBranch) SetActualLocation(loc graph.Location) error {
	r.checkMutable()
	if err := checkSameNode(r.kind, r.At, loc); err != nil {
		return err
	}
	r.actual = actual{loc: loc, set: true}
	return nil
}

func (r *DeleteBranch) String() string { return fmt.Sprintf("delete %s", r.At) }
