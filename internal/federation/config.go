package federation

import (
	"strings"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
)

// Config is an immutable federation configuration: the projections in
// declaration order plus the repository's default cache hint.
type Config struct {
	projections []*projection.Projection
	cache       graph.CachePolicy
}

// NewConfig builds a configuration. Projection order is significant: it
// decides merge order and property precedence.
func NewConfig(cache graph.CachePolicy, projections ...*projection.Projection) *Config {
	ps := make([]*projection.Projection, len(projections))
	copy(ps, projections)
	return &Config{projections: ps, cache: cache}
}

// Projections returns all projections in declaration order.
func (c *Config) Projections() []*projection.Projection {
	out := make([]*projection.Projection, len(c.projections))
	copy(out, c.projections)
	return out
}

// CachePolicy is the repository's default cache hint.
func (c *Config) CachePolicy() graph.CachePolicy { return c.cache }

// Projection returns the projection of the named source.
func (c *Config) Projection(sourceName string) (*projection.Projection, bool) {
	for _, p := range c.projections {
		if p.SourceName() == sourceName {
			return p, true
		}
	}
	return nil, false
}

// Contributing returns the projections that have at least one rule.
func (c *Config) Contributing() []*projection.Projection {
	var out []*projection.Projection
	for _, p := range c.projections {
		if !p.IsEmpty() {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) String() string {
	parts := make([]string, len(c.projections))
	for i, p := range c.projections {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
