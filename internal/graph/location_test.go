package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Identity(t *testing.T) {
	byPath := MustAt("/a/b")
	byID := ByUUID("1234")
	both := byPath.WithIDProperty(NewProperty(UUIDProperty, "1234"))

	assert.True(t, byPath.HasPath())
	assert.False(t, byID.HasPath())
	id, ok := both.UUID()
	require.True(t, ok)
	assert.Equal(t, "1234", id)

	assert.True(t, both.Equal(byPath))
	assert.True(t, both.Equal(byID))
	assert.False(t, byPath.Equal(byID), "locations sharing no field are unequal")
	assert.False(t, both.Equal(ByUUID("9999")))

	assert.Equal(t, "/a/b", both.WithoutIDProperties().String())
	assert.False(t, both.WithoutPath().HasPath())
	assert.True(t, Location{}.IsEmpty())
}

func TestLocation_WithIDPropertyReplaces(t *testing.T) {
	loc := ByUUID("one").WithIDProperty(NewProperty(UUIDProperty, "two"))
	require.Len(t, loc.IDProperties(), 1)
	id, _ := loc.UUID()
	assert.Equal(t, "two", id)
}

func TestLocation_CompareAndKey(t *testing.T) {
	assert.Negative(t, MustAt("/a").Compare(MustAt("/b")))
	assert.Negative(t, MustAt("/z").Compare(ByUUID("x")), "locations without a path sort last")
	assert.Equal(t, "/a", MustAt("/a").WithIDProperty(NewProperty(UUIDProperty, "x")).Key())
	assert.Equal(t, "{dna:uuid=x}", ByUUID("x").Key())
}

func TestProperties_SetKeepsPosition(t *testing.T) {
	bag := NewProperties(NewProperty("a", 1), NewProperty("b", 2), NewProperty("c", 3))
	bag.Set(NewProperty("a", 10))
	bag.Set(NewProperty("d", 4))

	assert.Equal(t, []string{"a", "b", "c", "d"}, bag.Names())
	a, ok := bag.Get("a")
	require.True(t, ok)
	assert.Equal(t, []any{10}, a.Values)

	assert.True(t, bag.Remove("b"))
	assert.False(t, bag.Remove("b"))
	assert.Equal(t, []string{"a", "c", "d"}, bag.Names())
	c, ok := bag.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, c.First())
}

func TestProperties_MergeAndClone(t *testing.T) {
	base := NewProperties(NewProperty("x", "1"), NewProperty("y", "1"))
	clone := base.Clone()
	base.Merge(NewProperties(NewProperty("y", "2"), NewProperty("z", "2")))

	assert.Equal(t, []string{"x", "y", "z"}, base.Names())
	y, _ := base.Get("y")
	assert.Equal(t, "2", y.First())
	assert.Equal(t, 2, clone.Len(), "clones are independent")

	var nilBag *Properties
	assert.Zero(t, nilBag.Len())
	_, ok := nilBag.Get("x")
	assert.False(t, ok)
}

func TestProperty_EqualUsesRendering(t *testing.T) {
	assert.True(t, NewProperty("n", int64(5)).Equal(NewProperty("n", 5)))
	assert.False(t, NewProperty("n", "5").Equal(NewProperty("m", "5")))
	assert.Equal(t, "n=a,b", NewProperty("n", "a", "b").String())
	assert.True(t, NewProperty("n").IsEmpty())
	assert.Nil(t, NewProperty("n").First())
}

func TestExecutionContext_Names(t *testing.T) {
	ctx := NewExecutionContext()

	_, err := ctx.ParsePath("/dna:system/jcr:content")
	require.NoError(t, err)

	_, err = ctx.ParsePath("/acme:thing")
	assert.True(t, ErrUnknownNamespace.Is(err))

	reg := NewNamespaceRegistry()
	reg.Register("acme", "http://acme.example/ns")
	scoped := ctx.WithNamespaces(reg).WithPrincipal("alice")
	_, err = scoped.ParsePath("/acme:thing")
	require.NoError(t, err)
	assert.Equal(t, "alice", scoped.Principal())
	assert.Empty(t, ctx.Principal(), "derived contexts leave the original alone")

	p, err := scoped.CreateProperty("acme:size", 3)
	require.NoError(t, err)
	assert.Equal(t, "acme:size", p.Name)
	_, err = ctx.CreateProperty("a[b")
	assert.True(t, ErrInvalidPath.Is(err))
}
