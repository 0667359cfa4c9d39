package federation

import (
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
)

// forward pairs a repository-side request with the source-side copy that is
// actually sent to a connection.
type forward struct {
	orig request.Request
	src  request.Request
	// complete copies the source-side outcome back onto orig, translating
	// every path to the repository side.
	complete func() error
}

// finish completes orig from src and finishes it.
func (f *forward) finish() {
	if err := f.complete(); err != nil {
		f.orig.SetError(err)
	}
	f.orig.Finish()
}

// translator maps locations between the repository and one source.
type translator struct {
	proj *projection.Projection
}

func (t translator) down(loc graph.Location) (graph.Location, bool) {
	if !loc.HasPath() {
		return loc, true
	}
	p, ok := t.proj.ToSource(loc.Path())
	if !ok {
		return graph.Location{}, false
	}
	return loc.WithPath(p), true
}

func (t translator) up(loc graph.Location) (graph.Location, error) {
	if !loc.HasPath() {
		return loc, nil
	}
	p, ok := t.proj.ToRepository(loc.Path())
	if !ok {
		return graph.Location{}, ErrNotProjectable.New(loc.Path(), "outside the projection of source "+t.proj.SourceName())
	}
	return loc.WithPath(p), nil
}

// anchor translates the actual location reported for a request that asked
// for want. When want's own path maps to the same source node it is kept,
// even if another rule would map that node first.
func (t translator) anchor(want, actual graph.Location) (graph.Location, error) {
	if want.HasPath() && actual.HasPath() {
		if src, ok := t.proj.ToSource(want.Path()); ok && src.Equal(actual.Path()) {
			return actual.WithPath(want.Path()), nil
		}
	}
	return t.up(actual)
}

// below translates locations under the source node src to the same relative
// positions under the repository node repo, dropping those the projection
// does not expose there (for instance children under an exception).
func (t translator) below(repo, src graph.Path, locs []graph.Location) []graph.Location {
	out := make([]graph.Location, 0, len(locs))
	for _, l := range locs {
		if !l.HasPath() {
			continue
		}
		rel, ok := l.Path().RelativeTo(src)
		if !ok {
			continue
		}
		candidate := repo.Append(rel)
		if back, ok := t.proj.ToSource(candidate); ok && back.Equal(l.Path()) {
			out = append(out, l.WithPath(candidate))
		}
	}
	return out
}

// placed translates the location of a node created under parent, whose
// source-side counterpart is srcParent.
func (t translator) placed(parent, srcParent, loc graph.Location) (graph.Location, error) {
	if parent.HasPath() && srcParent.HasPath() {
		if got := t.below(parent.Path(), srcParent.Path(), []graph.Location{loc}); len(got) == 1 {
			return got[0], nil
		}
	}
	return t.up(loc)
}

// translate builds the source-side copy of r. It reports false when some
// path of r is not mapped by the projection.
func (t translator) translate(r request.Request) (*forward, bool) {
	switch req := r.(type) {
	case *request.ReadNode:
		at, ok := t.down(req.At)
		if !ok {
			return nil, false
		}
		s := request.NewReadNode(at)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			repo, src, ok, err := t.settle(req.At, s.ActualLocation, req.SetActualLocation)
			if err != nil || !ok {
				return err
			}
			req.AddProperties(s.Properties()...)
			return req.SetChildren(t.below(repo, src, s.Children()))
		}}, true

	case *request.ReadAllProperties:
		at, ok := t.down(req.At)
		if !ok {
			return nil, false
		}
		s := request.NewReadAllProperties(at)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			if _, _, _, err := t.settle(req.At, s.ActualLocation, req.SetActualLocation); err != nil {
				return err
			}
			req.AddProperties(s.Properties()...)
			req.SetNumberOfChildren(s.NumberOfChildren())
			return nil
		}}, true

	case *request.ReadProperty:
		at, ok := t.down(req.At)
		if !ok {
			return nil, false
		}
		s := request.NewReadProperty(at, req.Name)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			if _, _, _, err := t.settle(req.At, s.ActualLocation, req.SetActualLocation); err != nil {
				return err
			}
			if p, ok := s.Property(); ok {
				return req.SetProperty(p)
			}
			return nil
		}}, true

	case *request.ReadAllChildren:
		of, ok := t.down(req.Of)
		if !ok {
			return nil, false
		}
		s := request.NewReadAllChildren(of)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			repo, src, ok, err := t.settle(req.Of, s.ActualLocation, req.SetActualLocation)
			if err != nil || !ok {
				return err
			}
			return req.SetChildren(t.below(repo, src, s.Children()))
		}}, true

	case *request.ReadBlockOfChildren:
		of, ok := t.down(req.Of)
		if !ok {
			return nil, false
		}
		s := request.NewReadBlockOfChildren(of, req.StartingAtIndex, req.Count)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			repo, src, ok, err := t.settle(req.Of, s.ActualLocation, req.SetActualLocation)
			if err != nil || !ok {
				return err
			}
			return req.SetChildren(t.below(repo, src, s.Children()))
		}}, true

	case *request.ReadNextBlockOfChildren:
		after, ok := t.down(req.StartingAfter)
		if !ok {
			return nil, false
		}
		// Siblings of a mount point live in the repository, not the source.
		if req.StartingAfter.HasPath() {
			if _, ok := t.proj.ToSource(req.StartingAfter.Path().Parent()); !ok {
				return nil, false
			}
		}
		s := request.NewReadNextBlockOfChildren(after, req.Count)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			repo, src, ok, err := t.settle(req.StartingAfter, s.ActualLocation, req.SetActualLocation)
			if err != nil || !ok {
				return err
			}
			for _, c := range t.below(repo.Parent(), src.Parent(), s.Children()) {
				if err := req.AddChild(c); err != nil {
					return err
				}
			}
			return nil
		}}, true

	case *request.ReadBranch:
		at, ok := t.down(req.At)
		if !ok {
			return nil, false
		}
		s := request.NewReadBranch(at, req.MaxDepth)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			repo, src, ok, err := t.settle(req.At, s.ActualLocation, req.SetActualLocation)
			if err != nil || !ok {
				return err
			}
			for _, n := range s.Nodes() {
				locs := t.below(repo, src, []graph.Location{n.Location})
				if len(locs) == 0 {
					continue
				}
				loc := locs[0]
				if err := req.AddNode(loc, n.Properties, t.below(loc.Path(), n.Location.Path(), n.Children)); err != nil {
					return err
				}
			}
			return nil
		}}, true

	case *request.CreateNode:
		under, ok := t.down(req.Under)
		if !ok {
			return nil, false
		}
		s := request.NewCreateNode(under, req.ChildName, req.Properties...)
		s.Conflict = req.Conflict
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			loc, ok := s.ActualLocation()
			if !ok {
				return nil
			}
			up, err := t.placed(req.Under, under, loc)
			if err != nil {
				return err
			}
			return req.SetActualLocation(up)
		}}, true

	case *request.UpdateProperties:
		on, ok := t.down(req.On)
		if !ok {
			return nil, false
		}
		s := request.NewUpdateProperties(on, req.Properties()...)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			_, _, _, err := t.settle(req.On, s.ActualLocation, req.SetActualLocation)
			return err
		}}, true

	case *request.RemoveProperties:
		from, ok := t.down(req.From)
		if !ok {
			return nil, false
		}
		s := request.NewRemoveProperties(from, req.Names...)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			_, _, _, err := t.settle(req.From, s.ActualLocation, req.SetActualLocation)
			return err
		}}, true

	case *request.MoveBranch:
		from, ok1 := t.down(req.From)
		into, ok2 := t.down(req.Into)
		if !ok1 || !ok2 {
			return nil, false
		}
		s := request.NewMoveBranch(from, into, req.NewName)
		if req.Before != nil {
			before, ok := t.down(*req.Before)
			if !ok {
				return nil, false
			}
			s.Before = &before
		}
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			oldLoc, oldSet := s.ActualLocation()
			newLoc, newSet := s.ActualNewLocation()
			if !oldSet || !newSet {
				return nil
			}
			return t.settlePlaced(req.From, req.Into, into, oldLoc, newLoc, req.SetActualLocations)
		}}, true

	case *request.CopyBranch:
		from, ok1 := t.down(req.From)
		into, ok2 := t.down(req.Into)
		if !ok1 || !ok2 {
			return nil, false
		}
		s := request.NewCopyBranch(from, into, req.NewName)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			fromLoc, fromSet := s.ActualLocation()
			copyLoc, copySet := s.ActualCopyLocation()
			if !fromSet || !copySet {
				return nil
			}
			return t.settlePlaced(req.From, req.Into, into, fromLoc, copyLoc, req.SetActualLocations)
		}}, true

	case *request.DeleteBranch:
		at, ok := t.down(req.At)
		if !ok {
			return nil, false
		}
		s := request.NewDeleteBranch(at)
		return &forward{orig: req, src: s, complete: func() error {
			if err := s.Err(); err != nil {
				return err
			}
			_, _, _, err := t.settle(req.At, s.ActualLocation, req.SetActualLocation)
			return err
		}}, true
	}
	return nil, false
}

// settle records the actual location reported by the source on orig and
// returns the node's path on both sides. ok is false when the source
// reported none.
func (t translator) settle(want graph.Location, get func() (graph.Location, bool), set func(graph.Location) error) (repo, src graph.Path, ok bool, err error) {
	actual, ok := get()
	if !ok {
		return graph.Path{}, graph.Path{}, false, nil
	}
	up, err := t.anchor(want, actual)
	if err != nil {
		return graph.Path{}, graph.Path{}, false, err
	}
	if err := set(up); err != nil {
		return graph.Path{}, graph.Path{}, false, err
	}
	return up.Path(), actual.Path(), up.HasPath() && actual.HasPath(), nil
}

// settlePlaced records both ends of a move or copy.
func (t translator) settlePlaced(from, into, srcInto graph.Location, a, b graph.Location, set func(graph.Location, graph.Location) error) error {
	ua, err := t.anchor(from, a)
	if err != nil {
		return err
	}
	ub, err := t.placed(into, srcInto, b)
	if err != nil {
		return err
	}
	return set(ua, ub)
}
