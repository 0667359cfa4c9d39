package graph

import (
	"strings"
)

// Location identifies a node by path, by identification properties, or both.
// Locations are immutable; the With* methods return new values.
type Location struct {
	path    Path
	hasPath bool
	ids     []Property
}

// At returns a location holding only a path.
func At(p Path) Location {
	return Location{path: p, hasPath: true}
}

// AtPath parses text and returns a location for it.
func AtPath(text string) (Location, error) {
	p, err := ParsePath(text)
	if err != nil {
		return Location{}, err
	}
	return At(p), nil
}

// MustAt is AtPath for literals known to be valid.
func MustAt(text string) Location {
	return At(MustParsePath(text))
}

// ByUUID returns a location identified only by a dna:uuid property.
func ByUUID(id string) Location {
	return Location{ids: []Property{NewProperty(UUIDProperty, id)}}
}

// ByID returns a location identified only by the given properties.
func ByID(props ...Property) Location {
	loc := Location{}
	for _, p := range props {
		loc = loc.WithIDProperty(p)
	}
	return loc
}

// HasPath reports whether a path is present.
func (l Location) HasPath() bool { return l.hasPath }

// Path returns the path; check HasPath first.
func (l Location) Path() Path { return l.path }

// HasIDProperties reports whether any identification property is present.
func (l Location) HasIDProperties() bool { return len(l.ids) > 0 }

// IDProperties returns a copy of the identification properties.
func (l Location) IDProperties() []Property {
	out := make([]Property, len(l.ids))
	for i, p := range l.ids {
		out[i] = p.Clone()
	}
	return out
}

// IDProperty returns an identification property by name.
func (l Location) IDProperty(name string) (Property, bool) {
	for _, p := range l.ids {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// UUID returns the dna:uuid identification value, if any.
func (l Location) UUID() (string, bool) {
	p, ok := l.IDProperty(UUIDProperty)
	if !ok || p.IsEmpty() {
		return "", false
	}
	s, ok := p.First().(string)
	return s, ok
}

// IsEmpty reports whether the location identifies nothing.
func (l Location) IsEmpty() bool { return !l.hasPath && len(l.ids) == 0 }

// WithPath returns a copy with the path replaced.
func (l Location) WithPath(p Path) Location {
	return Location{path: p, hasPath: true, ids: l.IDProperties()}
}

// WithoutPath returns a copy holding only the identification properties.
func (l Location) WithoutPath() Location {
	return Location{ids: l.IDProperties()}
}

// WithIDProperty returns a copy with the property added or replaced.
func (l Location) WithIDProperty(p Property) Location {
	ids := make([]Property, 0, len(l.ids)+1)
	replaced := false
	for _, existing := range l.ids {
		if existing.Name == p.Name {
			ids = append(ids, p.Clone())
			replaced = true
			continue
		}
		ids = append(ids, existing.Clone())
	}
	if !replaced {
		ids = append(ids, p.Clone())
	}
	return Location{path: l.path, hasPath: l.hasPath, ids: ids}
}

// WithoutIDProperties returns a copy holding only the path.
func (l Location) WithoutIDProperties() Location {
	return Location{path: l.path, hasPath: l.hasPath}
}

// Equal compares whichever identifying fields both sides carry. Two
// locations with paths must have equal paths; identification properties
// present on both sides must agree. Locations sharing no field are unequal.
func (l Location) Equal(o Location) bool {
	compared := false
	if l.hasPath && o.hasPath {
		if !l.path.Equal(o.path) {
			return false
		}
		compared = true
	}
	for _, p := range l.ids {
		if q, ok := o.IDProperty(p.Name); ok {
			if !p.Equal(q) {
				return false
			}
			compared = true
		}
	}
	return compared
}

// Compare orders by path. Locations without a path sort last.
func (l Location) Compare(o Location) int {
	switch {
	case l.hasPath && o.hasPath:
		return l.path.Compare(o.path)
	case l.hasPath:
		return -1
	case o.hasPath:
		return 1
	}
	return strings.Compare(l.String(), o.String())
}

// Key returns a string usable as a map key for locations with a path, and a
// rendering of the identification properties otherwise.
func (l Location) Key() string {
	if l.hasPath {
		return l.path.String()
	}
	return l.String()
}

func (l Location) String() string {
	var b strings.Builder
	if l.hasPath {
		b.WriteString(l.path.String())
	}
	if len(l.ids) > 0 {
		if l.hasPath {
			b.WriteByte(' ')
		}
		b.WriteString("{")
		for i, p := range l.ids {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteString("}")
	}
	if b.Len() == 0 {
		return "<empty location>"
	}
	return b.String()
}
