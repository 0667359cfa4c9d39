package federation

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
)

// state is one configuration together with the executor built for it. It
// is replaced as a whole, never modified.
type state struct {
	cfg  *Config
	exec Executor
}

// Repository is a federated repository whose configuration can be swapped
// while it serves requests. Each execution works on the configuration that
// was current when it started.
type Repository struct {
	name    string
	factory connector.ConnectionFactory
	opts    []Option
	log     logrus.FieldLogger

	configSource string
	configPath   graph.Path

	mu      sync.RWMutex
	current *state
}

// NewRepository returns a repository named name that reaches sources through
// factory.
func NewRepository(name string, factory connector.ConnectionFactory, cfg *Config, opts ...Option) *Repository {
	o := buildOptions(opts)
	r := &Repository{
		name:    name,
		factory: factory,
		opts:    opts,
		log:     o.logger.WithField("repository", name),
	}
	r.current = r.build(cfg)
	return r
}

func (r *Repository) build(cfg *Config) *state {
	if cfg == nil {
		cfg = NewConfig(graph.CachePolicy{})
	}
	return &state{cfg: cfg, exec: NewExecutor(cfg, r.factory, r.opts...)}
}

// WithConfigSource makes Reload read the configuration stored at path in
// the named source.
func (r *Repository) WithConfigSource(sourceName string, path graph.Path) *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configSource = sourceName
	r.configPath = path
	return r
}

func (r *Repository) snapshot() *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SourceName names the repository.
func (r *Repository) SourceName() string { return r.name }

// Config returns the current configuration.
func (r *Repository) Config() *Config { return r.snapshot().cfg }

// Executor returns the executor built for the current configuration.
func (r *Repository) Executor() Executor { return r.snapshot().exec }

// Reconfigure atomically replaces the configuration. Requests already
// executing finish with the configuration they started with.
func (r *Repository) Reconfigure(cfg *Config) {
	next := r.build(cfg)
	r.mu.Lock()
	r.current = next
	r.mu.Unlock()
	r.log.WithField("projections", len(next.cfg.Projections())).Info("federation reconfigured")
}

// Execute runs req with the configuration current at the time of the call.
func (r *Repository) Execute(ctx *graph.ExecutionContext, req request.Request) error {
	return r.snapshot().exec.Execute(ctx, req)
}

// Reload reads the configuration from the configuration source through the
// bootstrap projection and swaps it in.
func (r *Repository) Reload(ctx *graph.ExecutionContext) error {
	r.mu.RLock()
	sourceName, path := r.configSource, r.configPath
	r.mu.RUnlock()
	if sourceName == "" {
		return ErrConfiguration.New("no configuration source")
	}

	boot := projection.MustParse(sourceName, projection.BootstrapRule)
	exec := NewSingleProjectionExecutor(boot, r.factory)
	rule := boot.Rules()[0]
	at := rule.RepositoryPath().Append(path.Segments())

	cfg, err := ReadConfig(ctx, exec, at)
	if err != nil {
		r.log.WithError(err).Warn("reloading federation configuration")
		return err
	}
	r.Reconfigure(cfg)
	return nil
}

// Name implements connector.Source, so a repository can itself be projected
// into another federation.
func (r *Repository) Name() string { return r.name }

// RetryLimit implements connector.Source.
func (r *Repository) RetryLimit() int { return 0 }

// Connect implements connector.Source.
func (r *Repository) Connect() (connector.Connection, error) {
	return &repositoryConnection{repo: r, snap: r.snapshot()}, nil
}

// repositoryConnection pins the configuration for its lifetime.
type repositoryConnection struct {
	repo *Repository
	snap *state
}

func (c *repositoryConnection) SourceName() string { return c.repo.name }

func (c *repositoryConnection) DefaultCachePolicy() graph.CachePolicy { return c.snap.cfg.CachePolicy() }

func (c *repositoryConnection) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	return c.snap.exec.Execute(ctx, r)
}

func (c *repositoryConnection) Close() error { return nil }

var _ connector.Source = (*Repository)(nil)
