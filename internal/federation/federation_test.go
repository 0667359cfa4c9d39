package federation_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/federation"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
	"github.com/agentic-research/fedgraph/internal/source/memory"
)

// recordingFactory notes every request that reaches a connection.
type recordingFactory struct {
	*connector.Registry
	mu     sync.Mutex
	opened int
	sent   []string
}

func (f *recordingFactory) CreateConnection(name string) (connector.Connection, error) {
	conn, err := f.Registry.CreateConnection(name)
	if conn == nil || err != nil {
		return conn, err
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &recordingConn{Connection: conn, f: f}, nil
}

func (f *recordingFactory) record(source string, r request.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := r.(*request.Composite); ok {
		f.sent = append(f.sent, fmt.Sprintf("%s:Composite(%d)", source, c.Len()))
		return
	}
	f.sent = append(f.sent, source+":"+r.Kind())
}

type recordingConn struct {
	connector.Connection
	f *recordingFactory
}

func (c *recordingConn) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	c.f.record(c.SourceName(), r)
	return c.Connection.Execute(ctx, r)
}

type fixture struct {
	factory *recordingFactory
	sources map[string]*connector.StoreSource
	stores  map[string]*memory.Store
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	f := &fixture{
		factory: &recordingFactory{Registry: connector.NewRegistry(nil)},
		sources: map[string]*connector.StoreSource{},
		stores:  map[string]*memory.Store{},
	}
	for _, n := range names {
		src, store := memory.NewSource(n)
		require.NoError(t, f.factory.Register(src))
		f.sources[n] = src
		f.stores[n] = store
	}
	return f
}

func (f *fixture) put(source, path string, props ...graph.Property) {
	f.stores[source].Put(graph.MustParsePath(path), props...)
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	for name, src := range f.sources {
		assert.Zero(t, src.OpenConnections(), "connections to %s left open", name)
	}
}

func cfg(projections ...*projection.Projection) *federation.Config {
	return federation.NewConfig(graph.CachePolicy{}, projections...)
}

func paths(locs []graph.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.Path().String()
	}
	return out
}

func names(props []graph.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}

var ctx = graph.NewExecutionContext()

func TestNewExecutor_Selection(t *testing.T) {
	f := newFixture(t, "alpha", "beta")

	assert.IsType(t, federation.NoOpExecutor{}, federation.NewExecutor(cfg(), f.factory))
	assert.IsType(t, federation.NoOpExecutor{},
		federation.NewExecutor(cfg(projection.MustParse("alpha")), f.factory), "projections without rules contribute nothing")
	assert.IsType(t, &federation.SingleProjectionExecutor{},
		federation.NewExecutor(cfg(projection.MustParse("alpha", "/a => /"), projection.MustParse("beta")), f.factory))
	assert.IsType(t, &federation.FederatingExecutor{},
		federation.NewExecutor(cfg(projection.MustParse("alpha", "/a => /", "/b => /x")), f.factory))
	assert.IsType(t, &federation.FederatingExecutor{},
		federation.NewExecutor(cfg(projection.MustParse("alpha", "/a => /"), projection.MustParse("beta", "/b => /")), f.factory))

	logged := federation.NewExecutor(cfg(), f.factory, federation.WithRequestLogging())
	require.IsType(t, &federation.LoggingExecutor{}, logged)
	assert.IsType(t, federation.NoOpExecutor{}, logged.(*federation.LoggingExecutor).Unwrap())
}

func TestNoOpExecutor(t *testing.T) {
	exec := federation.NoOpExecutor{}

	read := request.NewReadNode(graph.MustAt("/a/b"))
	create := request.NewCreateNode(graph.MustAt("/a"), "c")
	comp := request.NewComposite(read, create)
	require.NoError(t, exec.Execute(ctx, comp))

	assert.Equal(t, request.Completed, comp.State())
	loc, ok := read.ActualLocation()
	require.True(t, ok)
	assert.Equal(t, "/a/b", loc.String())
	assert.Empty(t, read.Properties())
	assert.Empty(t, read.Children())
	created, _ := create.ActualLocation()
	assert.Equal(t, "/a/c", created.String())

	assert.True(t, request.ErrAlreadySubmitted.Is(exec.Execute(ctx, read)))
}

func TestSingleProjection_ForwardsOneComposite(t *testing.T) {
	f := newFixture(t, "content")
	f.put("content", "/a", graph.NewProperty("k", "v"))
	f.put("content", "/b")
	exec := federation.NewExecutor(cfg(projection.MustParse("content", "/docs => /")), f.factory)

	readA := request.NewReadNode(graph.MustAt("/docs/a"))
	readRoot := request.NewReadAllChildren(graph.MustAt("/docs"))
	set := request.NewUpdateProperties(graph.MustAt("/docs/b"), graph.NewProperty("n", 1))
	comp := request.NewComposite(readA, readRoot, set)
	require.NoError(t, exec.Execute(ctx, comp))
	require.NoError(t, comp.Err())

	assert.Equal(t, []string{"content:Composite(3)"}, f.factory.sent)
	assert.Equal(t, 1, f.factory.opened)

	loc, _ := readA.ActualLocation()
	assert.Equal(t, "/docs/a", loc.Path().String())
	p, ok := readA.Property("k")
	require.True(t, ok)
	assert.Equal(t, "v", p.First())
	assert.Equal(t, []string{"/docs/a", "/docs/b"}, paths(readRoot.Children()))

	b, err := f.stores["content"].Node(graph.MustParsePath("/b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, names(b.Properties))
	f.assertReleased(t)
}

func TestSingleProjection_PlaceholdersAndUnmapped(t *testing.T) {
	f := newFixture(t, "content")
	f.put("content", "/a")
	exec := federation.NewExecutor(cfg(projection.MustParse("content", "/mnt/docs => /")), f.factory)

	root := request.NewReadNode(graph.MustAt("/"))
	mnt := request.NewReadAllChildren(graph.MustAt("/mnt"))
	docs := request.NewReadAllChildren(graph.MustAt("/mnt/docs"))
	write := request.NewUpdateProperties(graph.MustAt("/mnt"), graph.NewProperty("x", 1))
	elsewhere := request.NewDeleteBranch(graph.MustAt("/other"))
	comp := request.NewComposite(root, mnt, docs, write, elsewhere)
	require.NoError(t, exec.Execute(ctx, comp))

	assert.Equal(t, []string{"/mnt"}, paths(root.Children()))
	assert.Equal(t, []string{"/mnt/docs"}, paths(mnt.Children()))
	assert.Equal(t, []string{"/mnt/docs/a"}, paths(docs.Children()))
	assert.True(t, federation.ErrPlaceholderWrite.Is(write.Err()))
	assert.True(t, federation.ErrNotProjectable.Is(elsewhere.Err()))
	assert.Equal(t, []uint32{3, 4}, comp.Failed().ToArray())
	f.assertReleased(t)
}

func federatedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, "alpha", "beta")
	f.put("alpha", "/x/a")
	f.put("alpha", "/x/shared", graph.NewProperty("only_alpha", 1), graph.NewProperty("k", "alpha"))
	f.put("beta", "/x/shared", graph.NewProperty("k", "beta"), graph.NewProperty("only_beta", 2))
	f.put("beta", "/x/b")
	return f
}

func federatedConfig() *federation.Config {
	return cfg(projection.MustParse("alpha", "/ => /"), projection.MustParse("beta", "/ => /"))
}

func TestFederating_MergesReads(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			f := federatedFixture(t)
			var opts []federation.Option
			if parallel {
				opts = append(opts, federation.WithParallelReads())
			}
			exec := federation.NewExecutor(federatedConfig(), f.factory, opts...)

			x := request.NewReadAllChildren(graph.MustAt("/x"))
			shared := request.NewReadNode(graph.MustAt("/x/shared"))
			onlyBeta := request.NewReadProperty(graph.MustAt("/x/b"), "missing")
			require.NoError(t, exec.Execute(ctx, request.NewComposite(x, shared, onlyBeta)))

			require.NoError(t, x.Err())
			assert.Equal(t, []string{"/x/a", "/x/shared", "/x/b"}, paths(x.Children()))

			require.NoError(t, shared.Err())
			assert.Equal(t, []string{"only_alpha", "k", "only_beta"}, names(shared.Properties()))
			k, _ := shared.Property("k")
			assert.Equal(t, "beta", k.First(), "later projections win")
			loc, _ := shared.ActualLocation()
			_, hasID := loc.UUID()
			assert.True(t, hasID)

			require.NoError(t, onlyBeta.Err(), "a node missing from some sources is still found")
			_, ok := onlyBeta.Property()
			assert.False(t, ok)
			f.assertReleased(t)
		})
	}
}

func TestFederating_NotFound(t *testing.T) {
	f := federatedFixture(t)
	exec := federation.NewExecutor(federatedConfig(), f.factory)

	r := request.NewReadNode(graph.MustAt("/x/nope/deeper"))
	require.NoError(t, exec.Execute(ctx, r))
	assert.True(t, graph.ErrPathNotFound.Is(r.Err()))
	assert.Equal(t, request.Failed, r.State())
	f.assertReleased(t)
}

func TestFederating_WritesNeedOneProjection(t *testing.T) {
	f := federatedFixture(t)
	exec := federation.NewExecutor(federatedConfig(), f.factory)

	set := request.NewUpdateProperties(graph.MustAt("/x/shared"), graph.NewProperty("k", "new"))
	del := request.NewDeleteBranch(graph.MustAt("/x/a"))
	require.NoError(t, exec.Execute(ctx, request.NewComposite(set, del)))

	assert.True(t, federation.ErrNotProjectable.Is(set.Err()))
	assert.True(t, federation.ErrNotProjectable.Is(del.Err()), "a path both projections map is ambiguous even if one source lacks it")
	assert.Empty(t, f.factory.sent, "rejected writes never reach a source")

	shared, _ := f.stores["alpha"].Node(graph.MustParsePath("/x/shared"))
	assert.Equal(t, "alpha", shared.Properties[1].First())
}

func mountedFixture(t *testing.T) (*fixture, federation.Executor) {
	t.Helper()
	f := newFixture(t, "alpha", "beta")
	f.put("alpha", "/item", graph.NewProperty("from", "alpha"))
	f.put("alpha", "/tmp/scratch")
	f.put("beta", "/item", graph.NewProperty("from", "beta"))
	exec := federation.NewExecutor(cfg(
		projection.MustParse("alpha", "/mnt/alpha => / $ /tmp"),
		projection.MustParse("beta", "/mnt/beta => /"),
	), f.factory)
	return f, exec
}

func TestFederating_Placeholders(t *testing.T) {
	f, exec := mountedFixture(t)

	root := request.NewReadNode(graph.MustAt("/"))
	mnt := request.NewReadAllChildren(graph.MustAt("/mnt"))
	alpha := request.NewReadAllChildren(graph.MustAt("/mnt/alpha"))
	branch := request.NewReadBranch(graph.MustAt("/mnt"), 2)
	require.NoError(t, exec.Execute(ctx, request.NewComposite(root, mnt, alpha, branch)))

	assert.Equal(t, []string{"/mnt"}, paths(root.Children()))
	assert.Empty(t, root.Properties())
	assert.Equal(t, []string{"/mnt/alpha", "/mnt/beta"}, paths(mnt.Children()))
	assert.Equal(t, []string{"/mnt/alpha/item"}, paths(alpha.Children()), "exceptions are hidden")

	require.NoError(t, branch.Err())
	var got []string
	for _, n := range branch.Nodes() {
		got = append(got, n.Location.Path().String())
	}
	assert.Equal(t, []string{"/mnt", "/mnt/alpha", "/mnt/beta", "/mnt/alpha/item", "/mnt/beta/item"}, got)

	for _, r := range []request.Request{
		request.NewUpdateProperties(graph.MustAt("/mnt"), graph.NewProperty("x", 1)),
		request.NewCreateNode(graph.MustAt("/"), "new"),
		request.NewDeleteBranch(graph.MustAt("/mnt")),
	} {
		require.NoError(t, exec.Execute(ctx, r))
		assert.True(t, federation.ErrPlaceholderWrite.Is(r.Err()), "%s: %v", r, r.Err())
	}
	f.assertReleased(t)
}

func TestFederating_RoutedWrites(t *testing.T) {
	f, exec := mountedFixture(t)

	create := request.NewCreateNode(graph.MustAt("/mnt/beta"), "fresh", graph.NewProperty("n", 1))
	require.NoError(t, exec.Execute(ctx, create))
	require.NoError(t, create.Err())
	loc, _ := create.ActualLocation()
	assert.Equal(t, "/mnt/beta/fresh", loc.Path().String())
	_, err := f.stores["beta"].Node(graph.MustParsePath("/fresh"))
	require.NoError(t, err)

	before := len(f.factory.sent)
	cross := request.NewMoveBranch(graph.MustAt("/mnt/alpha/item"), graph.MustAt("/mnt/beta"), "moved")
	require.NoError(t, exec.Execute(ctx, cross))
	assert.True(t, federation.ErrCrossSourceOperation.Is(cross.Err()))
	assert.Len(t, f.factory.sent, before, "a cross-source move sends nothing")
	_, err = f.stores["alpha"].Node(graph.MustParsePath("/item"))
	require.NoError(t, err)
	_, err = f.stores["beta"].Node(graph.MustParsePath("/moved"))
	assert.True(t, graph.ErrPathNotFound.Is(err))

	same := request.NewCopyBranch(graph.MustAt("/mnt/beta/item"), graph.MustAt("/mnt/beta/fresh"), "")
	require.NoError(t, exec.Execute(ctx, same))
	require.NoError(t, same.Err())
	copied, _ := same.ActualCopyLocation()
	assert.Equal(t, "/mnt/beta/fresh/item", copied.Path().String())
	f.assertReleased(t)
}

func TestFederating_BranchWritesStayInOneSource(t *testing.T) {
	f := newFixture(t, "alpha", "beta")
	f.put("alpha", "/x/a")
	f.put("alpha", "/z")
	f.put("beta", "/leaf")
	exec := federation.NewExecutor(cfg(
		projection.MustParse("alpha", "/ => /"),
		projection.MustParse("beta", "/x/b => /"),
	), f.factory)

	for _, r := range []request.Request{
		request.NewDeleteBranch(graph.MustAt("/x")),
		request.NewMoveBranch(graph.MustAt("/x"), graph.MustAt("/z"), ""),
		request.NewCopyBranch(graph.MustAt("/x"), graph.MustAt("/z"), "copy"),
		request.NewCopyBranch(graph.MustAt("/z"), graph.MustAt("/x"), "b"),
		request.NewMoveBranch(graph.MustAt("/x/a"), graph.MustAt("/"), "x"),
	} {
		require.NoError(t, exec.Execute(ctx, r))
		assert.True(t, federation.ErrNotProjectable.Is(r.Err()), "%s: %v", r, r.Err())
	}
	assert.Empty(t, f.factory.sent, "branches holding another source's content are never sent")

	read := request.NewReadNode(graph.MustAt("/x"))
	require.NoError(t, exec.Execute(ctx, read))
	require.NoError(t, read.Err())
	assert.Equal(t, []string{"/x/a", "/x/b"}, paths(read.Children()))
	_, err := f.stores["beta"].Node(graph.MustParsePath("/leaf"))
	require.NoError(t, err)

	move := request.NewMoveBranch(graph.MustAt("/x/a"), graph.MustAt("/z"), "")
	require.NoError(t, exec.Execute(ctx, move))
	require.NoError(t, move.Err())
	_, err = f.stores["alpha"].Node(graph.MustParsePath("/z/a"))
	require.NoError(t, err)
	f.assertReleased(t)
}

func TestFederating_MoveWithinSourceAcrossProjections(t *testing.T) {
	f := newFixture(t, "alpha")
	f.put("alpha", "/x/a")
	f.put("alpha", "/y")
	exec := federation.NewExecutor(cfg(
		projection.MustParse("alpha", "/p => /x"),
		projection.MustParse("alpha", "/q => /y"),
	), f.factory)

	move := request.NewMoveBranch(graph.MustAt("/p/a"), graph.MustAt("/q"), "")
	require.NoError(t, exec.Execute(ctx, move))
	require.NoError(t, move.Err())
	newLoc, _ := move.ActualNewLocation()
	assert.Equal(t, "/q/a", newLoc.Path().String())
	_, err := f.stores["alpha"].Node(graph.MustParsePath("/y/a"))
	require.NoError(t, err)
}

func TestFederating_ByUUID(t *testing.T) {
	f, exec := mountedFixture(t)
	id := f.stores["beta"].Put(graph.MustParsePath("/item")).UUID

	read := request.NewReadNode(graph.ByUUID(id))
	require.NoError(t, exec.Execute(ctx, read))
	require.NoError(t, read.Err())
	loc, _ := read.ActualLocation()
	assert.Equal(t, "/mnt/beta/item", loc.Path().String())

	set := request.NewUpdateProperties(graph.ByUUID(id), graph.NewProperty("touched", true))
	require.NoError(t, exec.Execute(ctx, set))
	require.NoError(t, set.Err())

	missing := request.NewReadNode(graph.ByUUID("no-such-node"))
	require.NoError(t, exec.Execute(ctx, missing))
	assert.True(t, graph.ErrPathNotFound.Is(missing.Err()))
	f.assertReleased(t)
}

func TestProjection_SameSourceTwice(t *testing.T) {
	f := newFixture(t, "alpha")
	f.put("alpha", "/one/x/leaf")
	exec := federation.NewExecutor(cfg(projection.MustParse("alpha", "/a => /one", "/b => /one")), f.factory)

	read := request.NewReadNode(graph.MustAt("/b/x"))
	require.NoError(t, exec.Execute(ctx, read))
	require.NoError(t, read.Err())
	loc, _ := read.ActualLocation()
	assert.Equal(t, "/b/x", loc.Path().String())
	assert.Equal(t, []string{"/b/x/leaf"}, paths(read.Children()))
}

func TestLoggingExecutor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	exec := federation.NewLoggingExecutor(federation.NoOpExecutor{}, logger)

	r := request.NewReadNode(graph.MustAt("/a"))
	require.NoError(t, exec.Execute(ctx.WithPrincipal("alice"), r))
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.DebugLevel, last.Level)
	assert.Equal(t, "ReadNode", last.Data["request"])
	assert.Equal(t, "alice", last.Data["principal"])

	require.Error(t, exec.Execute(ctx, r))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRepository_ReconfigureKeepsPinnedConnections(t *testing.T) {
	f := newFixture(t, "alpha", "beta")
	f.put("alpha", "/only-alpha")
	f.put("beta", "/only-beta")
	repo := federation.NewRepository("fed", f.factory, cfg(projection.MustParse("alpha", "/ => /")))

	conn, err := repo.Connect()
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	repo.Reconfigure(cfg(projection.MustParse("beta", "/ => /")))

	pinned := request.NewReadAllChildren(graph.MustAt("/"))
	require.NoError(t, conn.Execute(ctx, pinned))
	assert.Equal(t, []string{"/only-alpha"}, paths(pinned.Children()))

	current := request.NewReadAllChildren(graph.MustAt("/"))
	require.NoError(t, repo.Execute(ctx, current))
	assert.Equal(t, []string{"/only-beta"}, paths(current.Children()))
	assert.Equal(t, "beta", repo.Config().Projections()[0].SourceName())
}

func TestRepository_NestedAsSource(t *testing.T) {
	f := newFixture(t, "alpha")
	f.put("alpha", "/doc", graph.NewProperty("k", "v"))
	inner := federation.NewRepository("inner", f.factory, cfg(projection.MustParse("alpha", "/content => /")))
	require.NoError(t, f.factory.Register(inner))

	outer := federation.NewRepository("outer", f.factory, cfg(projection.MustParse("inner", "/nested => /content")))
	r := request.NewReadProperty(graph.MustAt("/nested/doc"), "k")
	require.NoError(t, outer.Execute(ctx, r))
	require.NoError(t, r.Err())
	p, ok := r.Property()
	require.True(t, ok)
	assert.Equal(t, "v", p.First())
}

func TestConfig_WriteThenReload(t *testing.T) {
	f := newFixture(t, "config", "alpha")
	want := federation.NewConfig(
		graph.CachePolicy{TimeToCache: 30 * time.Second, TimeToExpire: 5 * time.Minute},
		projection.MustParse("alpha", "/docs => /content $ /content/tmp", "/more => /extra"),
		projection.MustParse("config", "/dna:system => /"),
	)
	store := connector.NewDispatcher(f.factory, "config")
	require.NoError(t, federation.WriteConfig(ctx, store, graph.MustParsePath("/fed"), want))
	require.NoError(t, federation.WriteConfig(ctx, store, graph.MustParsePath("/fed"), want), "writing again replaces")

	repo := federation.NewRepository("fed", f.factory, nil).WithConfigSource("config", graph.MustParsePath("/fed"))
	assert.IsType(t, federation.NoOpExecutor{}, repo.Executor())
	require.NoError(t, repo.Reload(ctx))

	got := repo.Config()
	assert.Equal(t, want.CachePolicy(), got.CachePolicy())
	require.Len(t, got.Projections(), 2)
	for i, p := range want.Projections() {
		assert.Equal(t, p.SourceName(), got.Projections()[i].SourceName())
		assert.Equal(t, p.RuleTexts(), got.Projections()[i].RuleTexts())
	}
	assert.IsType(t, &federation.FederatingExecutor{}, repo.Executor())
	f.assertReleased(t)
}

func TestConfig_ReloadErrors(t *testing.T) {
	f := newFixture(t, "config")
	repo := federation.NewRepository("fed", f.factory, nil)
	assert.True(t, federation.ErrConfiguration.Is(repo.Reload(ctx)))

	repo.WithConfigSource("config", graph.MustParsePath("/missing"))
	assert.True(t, federation.ErrConfiguration.Is(repo.Reload(ctx)))

	f.put("config", "/bad/dna:projections/alpha", graph.NewProperty(graph.ProjectionRulesProperty, "not a rule"))
	repo.WithConfigSource("config", graph.MustParsePath("/bad"))
	assert.True(t, projection.ErrInvalidRule.Is(repo.Reload(ctx)))
	assert.Empty(t, repo.Config().Projections(), "a failed reload keeps the old configuration")

	f.put("config", "/norules/dna:projections/alpha", graph.NewProperty("unrelated", "x"))
	repo.WithConfigSource("config", graph.MustParsePath("/norules"))
	err := repo.Reload(ctx)
	require.Error(t, err)
	assert.True(t, federation.ErrConfiguration.Is(err))
	assert.Contains(t, err.Error(), graph.ProjectionRulesProperty)
	assert.Empty(t, repo.Config().Projections())
	assert.IsType(t, federation.NoOpExecutor{}, repo.Executor())
}
