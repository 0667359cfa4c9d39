package graph

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: a name plus a same-name-sibling index.
// Index 1 is the first (and usually only) sibling with that name.
type Segment struct {
	Name  string
	Index int
}

// NewSegment returns a segment with the default sibling index.
func NewSegment(name string) Segment {
	return Segment{Name: name, Index: 1}
}

// String renders the segment, omitting the index when it is 1.
func (s Segment) String() string {
	if s.Index <= 1 {
		return s.Name
	}
	return s.Name + "[" + strconv.Itoa(s.Index) + "]"
}

// Compare orders segments by name, then by index.
func (s Segment) Compare(o Segment) int {
	if c := strings.Compare(s.Name, o.Name); c != 0 {
		return c
	}
	switch {
	case s.index() < o.index():
		return -1
	case s.index() > o.index():
		return 1
	}
	return 0
}

func (s Segment) index() int {
	if s.Index < 1 {
		return 1
	}
	return s.Index
}

// Path is an absolute, immutable sequence of segments. The zero value is the
// root path "/".
type Path struct {
	segments []Segment
}

// RootPath is "/".
var RootPath = Path{}

// NewPath builds a path from segments. The slice is copied.
func NewPath(segments ...Segment) Path {
	if len(segments) == 0 {
		return RootPath
	}
	out := make([]Segment, len(segments))
	for i, s := range segments {
		if s.Index < 1 {
			s.Index = 1
		}
		out[i] = s
	}
	return Path{segments: out}
}

// ParsePath parses an absolute path such as "/a/b[2]/dna:c". A trailing slash
// is tolerated; empty segments, relative paths and malformed indexes are not.
func ParsePath(text string) (Path, error) {
	if text == "" || text[0] != '/' {
		return Path{}, ErrInvalidPath.New(text, "path must be absolute")
	}
	trimmed := strings.TrimSuffix(text[1:], "/")
	if trimmed == "" {
		return RootPath, nil
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		seg, err := parseSegment(p)
		if err != nil {
			return Path{}, ErrInvalidPath.New(text, err.Error())
		}
		segs = append(segs, seg)
	}
	return Path{segments: segs}, nil
}

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(text string) Path {
	p, err := ParsePath(text)
	if err != nil {
		panic(err)
	}
	return p
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func parseSegment(text string) (Segment, error) {
	if text == "" {
		return Segment{}, segmentError("empty segment")
	}
	name, index := text, 1
	if open := strings.IndexByte(text, '['); open >= 0 {
		if !strings.HasSuffix(text, "]") || open == 0 {
			return Segment{}, segmentError("malformed segment " + strconv.Quote(text))
		}
		n, err := strconv.Atoi(text[open+1 : len(text)-1])
		if err != nil || n < 1 {
			return Segment{}, segmentError("invalid sibling index in " + strconv.Quote(text))
		}
		name, index = text[:open], n
	}
	if strings.ContainsAny(name, "[]*|") {
		return Segment{}, segmentError("illegal character in " + strconv.Quote(text))
	}
	if name == "." || name == ".." {
		return Segment{}, segmentError("relative segment " + strconv.Quote(text))
	}
	return Segment{Name: name, Index: index}, nil
}

// IsRoot reports whether p is "/".
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Len is the number of segments.
func (p Path) Len() int { return len(p.segments) }

// Segments returns a copy of the segments.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Segment returns the i-th segment.
func (p Path) Segment(i int) Segment { return p.segments[i] }

// Last returns the final segment. The root has none.
func (p Path) Last() (Segment, bool) {
	if p.IsRoot() {
		return Segment{}, false
	}
	return p.segments[len(p.segments)-1], true
}

// Parent returns the parent path; the root is its own parent.
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return RootPath
	}
	return Path{segments: p.segments[:len(p.segments)-1]}
}

// Ancestor returns the ancestor keeping the first n segments.
func (p Path) Ancestor(n int) Path {
	if n <= 0 {
		return RootPath
	}
	if n >= len(p.segments) {
		return p
	}
	return Path{segments: p.segments[:n]}
}

// Child returns p with one more segment.
func (p Path) Child(seg Segment) Path {
	if seg.Index < 1 {
		seg.Index = 1
	}
	out := make([]Segment, len(p.segments)+1)
	copy(out, p.segments)
	out[len(p.segments)] = seg
	return Path{segments: out}
}

// ChildNamed is Child(NewSegment(name)).
func (p Path) ChildNamed(name string) Path {
	return p.Child(NewSegment(name))
}

// Append resolves rel (a list of segments) beneath p.
func (p Path) Append(rel []Segment) Path {
	if len(rel) == 0 {
		return p
	}
	out := make([]Segment, 0, len(p.segments)+len(rel))
	out = append(out, p.segments...)
	out = append(out, rel...)
	return Path{segments: out}
}

// IsAtOrBelow reports whether p equals ancestor or lies beneath it.
func (p Path) IsAtOrBelow(ancestor Path) bool {
	if len(p.segments) < len(ancestor.segments) {
		return false
	}
	for i, s := range ancestor.segments {
		if s.Compare(p.segments[i]) != 0 {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	return len(p.segments) < len(other.segments) && other.IsAtOrBelow(p)
}

// RelativeTo returns the segments of p below ancestor. ok is false when p is
// not at or below ancestor.
func (p Path) RelativeTo(ancestor Path) (rel []Segment, ok bool) {
	if !p.IsAtOrBelow(ancestor) {
		return nil, false
	}
	rel = make([]Segment, len(p.segments)-len(ancestor.segments))
	copy(rel, p.segments[len(ancestor.segments):])
	return rel, true
}

// Equal reports segment-wise equality.
func (p Path) Equal(o Path) bool { return p.Compare(o) == 0 }

// Compare orders paths segment by segment; a proper prefix sorts first.
func (p Path) Compare(o Path) int {
	n := len(p.segments)
	if len(o.segments) < n {
		n = len(o.segments)
	}
	for i := 0; i < n; i++ {
		if c := p.segments[i].Compare(o.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p.segments) < len(o.segments):
		return -1
	case len(p.segments) > len(o.segments):
		return 1
	}
	return 0
}

// String renders the canonical form, e.g. "/a/b[2]".
func (p Path) String() string {
	if p.IsRoot() {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// Namespaces returns the distinct prefixes used by the path's names.
func (p Path) Namespaces() []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range p.segments {
		if prefix, _, ok := SplitName(s.Name); ok && !seen[prefix] {
			seen[prefix] = true
			out = append(out, prefix)
		}
	}
	return out
}

// SplitName splits "prefix:local". ok is false for unqualified names.
func SplitName(name string) (prefix, local string, ok bool) {
	i := strings.IndexByte(name, ':')
	if i <= 0 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}
