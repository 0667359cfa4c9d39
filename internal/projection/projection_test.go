package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/fedgraph/internal/graph"
)

func path(s string) graph.Path { return graph.MustParsePath(s) }

func TestParseRule_Canonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/dna:system => /", "/dna:system => /"},
		{"  /a=>/b/  ", "/a => /b"},
		{"/docs => /content $ /content/tmp $ /content/drafts[2]", "/docs => /content $ /content/tmp $ /content/drafts[2]"},
		{"/ => /", "/ => /"},
	}
	for _, tt := range tests {
		r, err := ParseRule(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, r.String())

		again, err := ParseRule(r.String())
		require.NoError(t, err)
		assert.Equal(t, r.String(), again.String(), "canonical text must round-trip")
	}
}

func TestParseRule_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"/a",
		"/a => /b => /c",
		"a => /b",
		"/a => b",
		"/a => /b $ /c",
		"/a => /b $ /b",
		"/a => /b $ nope",
	} {
		_, err := ParseRule(in)
		assert.True(t, ErrInvalidRule.Is(err), "%q: %v", in, err)
	}
}

func TestRule_Translation(t *testing.T) {
	r, err := ParseRule("/docs => /content $ /content/tmp")
	require.NoError(t, err)

	src, ok := r.ToSource(path("/docs/a/b"))
	require.True(t, ok)
	assert.Equal(t, "/content/a/b", src.String())

	repo, ok := r.ToRepository(src)
	require.True(t, ok)
	assert.Equal(t, "/docs/a/b", repo.String())

	_, ok = r.ToSource(path("/other"))
	assert.False(t, ok)
	_, ok = r.ToSource(path("/docs/tmp/x"))
	assert.False(t, ok, "exceptions are not projected")
	_, ok = r.ToRepository(path("/content/tmp"))
	assert.False(t, ok)
	_, ok = r.ToRepository(path("/elsewhere"))
	assert.False(t, ok)
}

func TestNewRule_RejectsExceptionOutsideSource(t *testing.T) {
	_, err := NewRule(path("/a"), path("/b"), path("/c/d"))
	assert.True(t, ErrInvalidRule.Is(err))

	r, err := NewRule(path("/a"), path("/b"), path("/b/d"))
	require.NoError(t, err)
	assert.Len(t, r.Exceptions(), 1)
}

func TestProjection_FirstRuleWins(t *testing.T) {
	p := MustParse("content", "/a => /one", "/a => /two", "/b => /one")

	src, ok := p.ToSource(path("/a/x"))
	require.True(t, ok)
	assert.Equal(t, "/one/x", src.String())

	repo, ok := p.ToRepository(path("/one/x"))
	require.True(t, ok)
	assert.Equal(t, "/a/x", repo.String(), "the first declared rule maps back")

	assert.Equal(t, []string{"/a => /one", "/a => /two", "/b => /one"}, p.RuleTexts())
	assert.False(t, p.IsSimple())
}

func TestProjection_Placeholders(t *testing.T) {
	p := MustParse("content", "/x/y/z => /", "/x/w => /other", "/x/y/q => /q")

	assert.True(t, p.IsPlaceholder(graph.RootPath))
	assert.True(t, p.IsPlaceholder(path("/x/y")))
	assert.False(t, p.IsPlaceholder(path("/x/y/z")), "a mount point is projected content")
	assert.False(t, p.IsPlaceholder(path("/elsewhere")))

	names := func(segs []graph.Segment) []string {
		out := make([]string, len(segs))
		for i, s := range segs {
			out[i] = s.String()
		}
		return out
	}
	assert.Equal(t, []string{"x"}, names(p.PlaceholderChildren(graph.RootPath)))
	assert.Equal(t, []string{"y", "w"}, names(p.PlaceholderChildren(path("/x"))))
	assert.Equal(t, []string{"z", "q"}, names(p.PlaceholderChildren(path("/x/y"))))
	assert.Empty(t, p.PlaceholderChildren(path("/x/y/z")))
}

func TestProjection_EmptyAndCache(t *testing.T) {
	p, err := Parse("empty")
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
	_, ok := p.ToSource(graph.RootPath)
	assert.False(t, ok)

	_, err = Parse("bad", "/a => /b", "oops")
	assert.True(t, ErrInvalidRule.Is(err))

	cache := graph.CachePolicy{TimeToCache: 5}
	q := MustParse("c", BootstrapRule).WithCachePolicy(cache)
	assert.Equal(t, cache, q.CachePolicy())
	assert.True(t, q.IsSimple())
	assert.Equal(t, "c [/dna:system => /]", q.String())
}
