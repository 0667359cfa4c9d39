package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/agentic-research/fedgraph/api"
	"github.com/agentic-research/fedgraph/internal/client"
	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/federation"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/source/billyfs"
	"github.com/agentic-research/fedgraph/internal/source/jsondoc"
	"github.com/agentic-research/fedgraph/internal/source/memory"
	"github.com/agentic-research/fedgraph/internal/source/sqlite"
)

// session is an opened federation.
type session struct {
	fed     *api.Federation
	repo    *federation.Repository
	graph   *client.Graph
	closers []io.Closer
}

func (s *session) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openSession loads the federation file at path and wires its sources,
// projections and repository.
func openSession(path string, log logrus.FieldLogger) (*session, error) {
	fed, err := api.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s := &session{fed: fed}

	registry := connector.NewRegistry(log)
	for _, src := range fed.Sources {
		opts := []connector.SourceOption{connector.WithRetryLimit(src.RetryLimit)}
		var source connector.Source
		switch src.Kind {
		case api.KindMemory:
			source, _ = memory.NewSource(src.Name, opts...)
		case api.KindSQLite:
			ss, store, err := sqlite.NewSource(src.Name, src.Path, opts...)
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			s.closers = append(s.closers, store)
			source = ss
		case api.KindDir:
			source = billyfs.NewSource(src.Name, src.Path, opts...)
		case api.KindJSON:
			if source, err = jsondoc.NewSource(src.Name, src.Path, src.Root, opts...); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		if err := registry.Register(source); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	cfg, err := buildConfig(fed)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	opts := []federation.Option{federation.WithLogger(log)}
	if verbose {
		opts = append(opts, federation.WithRequestLogging())
	}
	s.repo = federation.NewRepository(fed.Name, registry, cfg, opts...)
	s.graph = client.New(s.repo, graph.NewExecutionContext().WithLogger(log))
	return s, nil
}

func buildConfig(fed *api.Federation) (*federation.Config, error) {
	toCache, toExpire, err := fed.Cache.Durations()
	if err != nil {
		return nil, err
	}
	cache := graph.CachePolicy{TimeToCache: toCache, TimeToExpire: toExpire}
	projections := make([]*projection.Projection, 0, len(fed.Projections))
	for _, p := range fed.Projections {
		proj, err := projection.Parse(p.Source, p.Rules...)
		if err != nil {
			return nil, fmt.Errorf("projection %s: %w", p.Source, err)
		}
		projections = append(projections, proj.WithCachePolicy(cache))
	}
	return federation.NewConfig(cache, projections...), nil
}

// withSession opens the configured federation around fn.
func withSession(fn func(s *session) error) error {
	s, err := openSession(configPath, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}
