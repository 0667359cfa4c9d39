package graph

import (
	"testing"
)

func TestParsePath_Canonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
		len  int
	}{
		{"/", "/", 0},
		{"/a", "/a", 1},
		{"/a/", "/a", 1},
		{"/a/b[2]/dna:c", "/a/b[2]/dna:c", 3},
		{"/a[1]/b", "/a/b", 2},
	}
	for _, tt := range tests {
		p, err := ParsePath(tt.in)
		if err != nil {
			t.Fatalf("ParsePath(%q) returned error: %v", tt.in, err)
		}
		if p.String() != tt.want {
			t.Errorf("ParsePath(%q) = %q, want %q", tt.in, p.String(), tt.want)
		}
		if p.Len() != tt.len {
			t.Errorf("ParsePath(%q).Len() = %d, want %d", tt.in, p.Len(), tt.len)
		}
	}
}

func TestParsePath_Rejects(t *testing.T) {
	for _, in := range []string{"", "a/b", "/a//b", "/a[0]", "/a[x]", "/a[2", "/[2]", "/a/../b", "/a*"} {
		if _, err := ParsePath(in); !ErrInvalidPath.Is(err) {
			t.Errorf("ParsePath(%q) error = %v, want ErrInvalidPath", in, err)
		}
	}
}

func TestPath_ParentAndLast(t *testing.T) {
	p := MustParsePath("/a/b[3]")
	last, ok := p.Last()
	if !ok || last.Name != "b" || last.Index != 3 {
		t.Errorf("Last() = %v, %v", last, ok)
	}
	if got := p.Parent().String(); got != "/a" {
		t.Errorf("Parent() = %q, want /a", got)
	}
	if !RootPath.Parent().IsRoot() {
		t.Error("the root should be its own parent")
	}
	if _, ok := RootPath.Last(); ok {
		t.Error("the root has no last segment")
	}
}

func TestPath_Ancestry(t *testing.T) {
	a := MustParsePath("/a")
	ab := MustParsePath("/a/b")
	ac := MustParsePath("/a/c")

	if !ab.IsAtOrBelow(a) || !a.IsAtOrBelow(a) {
		t.Error("IsAtOrBelow should hold for self and descendants")
	}
	if ab.IsAtOrBelow(ac) {
		t.Error("/a/b is not below /a/c")
	}
	if !a.IsAncestorOf(ab) || a.IsAncestorOf(a) {
		t.Error("IsAncestorOf must be strict")
	}
	if !ab.IsAtOrBelow(RootPath) {
		t.Error("every path is below the root")
	}

	rel, ok := MustParsePath("/a/b/c").RelativeTo(a)
	if !ok || NewPath(rel...).String() != "/b/c" {
		t.Errorf("RelativeTo = %v, %v", rel, ok)
	}
	if _, ok := a.RelativeTo(ab); ok {
		t.Error("an ancestor is not relative to its descendant")
	}
	if got := MustParsePath("/x").Append(rel).String(); got != "/x/b/c" {
		t.Errorf("Append = %q, want /x/b/c", got)
	}
}

func TestPath_Compare(t *testing.T) {
	ordered := []string{"/", "/a", "/a/b", "/a/b[2]", "/a/c", "/b"}
	for i := 0; i+1 < len(ordered); i++ {
		x, y := MustParsePath(ordered[i]), MustParsePath(ordered[i+1])
		if x.Compare(y) >= 0 || y.Compare(x) <= 0 {
			t.Errorf("%s should sort before %s", x, y)
		}
	}
	if !MustParsePath("/a[1]").Equal(MustParsePath("/a")) {
		t.Error("an explicit index of 1 equals the default")
	}
}

func TestPath_Namespaces(t *testing.T) {
	got := MustParsePath("/dna:system/jcr:content/plain/dna:x").Namespaces()
	if len(got) != 2 || got[0] != "dna" || got[1] != "jcr" {
		t.Errorf("Namespaces() = %v, want [dna jcr]", got)
	}
}
