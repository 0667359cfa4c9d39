package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

func p(s string) graph.Path { return graph.MustParsePath(s) }

func childNames(n *connector.StoredNode) []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.String()
	}
	return out
}

func TestStore_PutAndNode(t *testing.T) {
	s := NewStore("mem")
	s.Put(p("/a/b"), graph.NewProperty("k", "v"))
	s.Put(p("/a/c"))

	a, err := s.Node(p("/a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, childNames(a))

	b, err := s.Node(p("/a/b"))
	require.NoError(t, err)
	require.Len(t, b.Properties, 1)
	assert.NotEmpty(t, b.UUID)

	_, err = s.Node(p("/a/x/y"))
	require.Error(t, err)
	assert.True(t, graph.ErrPathNotFound.Is(err))
	assert.Contains(t, err.Error(), "lowest existing ancestor /a")
}

func TestStore_CreateChildConflicts(t *testing.T) {
	s := NewStore("mem")
	s.Put(p("/a/b/deep"))

	n, err := s.CreateChild(p("/a"), "b", nil, request.AppendSibling)
	require.NoError(t, err)
	assert.Equal(t, "/a/b[2]", n.Path.String())

	_, err = s.CreateChild(p("/a"), "b", nil, request.FailIfExists)
	assert.True(t, graph.ErrNodeExists.Is(err))

	kept, err := s.CreateChild(p("/a"), "b", []graph.Property{graph.NewProperty("x", 1)}, request.DoNotReplace)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", kept.Path.String())
	assert.Empty(t, kept.Properties)

	replaced, err := s.CreateChild(p("/a"), "b", []graph.Property{graph.NewProperty("x", 1)}, request.ReplaceExisting)
	require.NoError(t, err)
	assert.Len(t, replaced.Properties, 1)
	assert.Empty(t, replaced.Children, "replacing drops the old children")

	_, err = s.CreateChild(p("/nope"), "b", nil, request.AppendSibling)
	assert.True(t, graph.ErrPathNotFound.Is(err))
}

func TestStore_Properties(t *testing.T) {
	s := NewStore("mem")
	s.Put(p("/a"), graph.NewProperty("x", 1), graph.NewProperty("y", 2))

	require.NoError(t, s.SetProperties(p("/a"), []graph.Property{graph.NewProperty("x"), graph.NewProperty("z", 3)}))
	n, _ := s.Node(p("/a"))
	names := []string{}
	for _, prop := range n.Properties {
		names = append(names, prop.Name)
	}
	assert.Equal(t, []string{"y", "z"}, names, "a property without values is removed")

	require.NoError(t, s.RemoveProperties(p("/a"), []string{"y", "unknown"}))
	n, _ = s.Node(p("/a"))
	assert.Len(t, n.Properties, 1)
}

func TestStore_MoveAndCopy(t *testing.T) {
	s := NewStore("mem")
	s.Put(p("/src/item/leaf"))
	s.Put(p("/dst/first"))
	s.Put(p("/dst/second"))

	before := p("/dst/second")
	moved, err := s.Move(p("/src/item"), p("/dst"), "renamed", &before)
	require.NoError(t, err)
	assert.Equal(t, "/dst/renamed", moved.String())

	dst, _ := s.Node(p("/dst"))
	assert.Equal(t, []string{"first", "renamed", "second"}, childNames(dst))
	_, err = s.Node(p("/dst/renamed/leaf"))
	require.NoError(t, err, "the subtree moves with its root")

	_, err = s.Move(p("/dst"), p("/dst/first"), "", nil)
	assert.True(t, graph.ErrInvalidLocation.Is(err))
	_, err = s.Move(graph.RootPath, p("/dst"), "", nil)
	assert.True(t, graph.ErrInvalidLocation.Is(err))

	orig, _ := s.Node(p("/dst/renamed/leaf"))
	copied, err := s.Copy(p("/dst/renamed"), p("/src"), "")
	require.NoError(t, err)
	assert.Equal(t, "/src/renamed", copied.String())
	leaf, err := s.Node(p("/src/renamed/leaf"))
	require.NoError(t, err)
	assert.NotEqual(t, orig.UUID, leaf.UUID, "copies get new identifiers")
}

func TestStore_DeleteForgetsUUIDs(t *testing.T) {
	s := NewStore("mem")
	n := s.Put(p("/a/b"))

	path, err := s.PathOf(n.UUID)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", path.String())

	require.NoError(t, s.Delete(p("/a")))
	_, err = s.PathOf(n.UUID)
	assert.True(t, graph.ErrPathNotFound.Is(err))
	assert.True(t, graph.ErrInvalidLocation.Is(s.Delete(graph.RootPath)))
}

func TestSource_ProcessesRequests(t *testing.T) {
	src, s := NewSource("mem")
	s.Put(p("/a/one"), graph.NewProperty("k", "1"))
	s.Put(p("/a/two"))
	s.Put(p("/a/three"))
	reg := connector.NewRegistry(nil)
	require.NoError(t, reg.Register(src))
	d := connector.NewDispatcher(reg, "mem")
	ctx := graph.NewExecutionContext()

	block := request.NewReadBlockOfChildren(graph.MustAt("/a"), 1, 5)
	next := request.NewReadNextBlockOfChildren(graph.MustAt("/a/one"), 1)
	branch := request.NewReadBranch(graph.MustAt("/"), 1)
	byID := request.NewReadProperty(graph.ByUUID(s.Put(p("/a/one")).UUID), "k")
	comp := request.NewComposite(block, next, branch, byID)
	require.NoError(t, d.Execute(ctx, comp))
	require.NoError(t, comp.Err())

	assert.Len(t, block.Children(), 2)
	require.Len(t, next.Children(), 1)
	assert.Equal(t, "/a/two", next.Children()[0].String())
	assert.Len(t, branch.Nodes(), 2, "depth 1 stops below the root's children")
	loc, _ := byID.ActualLocation()
	assert.Equal(t, "/a/one", loc.Path().String())
	prop, ok := byID.Property()
	require.True(t, ok)
	assert.Equal(t, "1", prop.First())

	create := request.NewCreateNode(graph.MustAt("/a"), "four", graph.NewProperty("n", 4))
	move := request.NewMoveBranch(graph.MustAt("/a/two"), graph.MustAt("/"), "")
	del := request.NewDeleteBranch(graph.MustAt("/a/three"))
	require.NoError(t, d.Execute(ctx, request.NewComposite(create, move, del)))
	require.NoError(t, create.Err())
	require.NoError(t, move.Err())
	require.NoError(t, del.Err())

	a, _ := s.Node(p("/a"))
	assert.Equal(t, []string{"one", "four"}, childNames(a))
	newLoc, _ := move.ActualNewLocation()
	assert.Equal(t, "/two", newLoc.Path().String())
	assert.Zero(t, src.OpenConnections())
}
