package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CachePolicy is an advisory hint for downstream caches. Neither duration is
// enforced here.
type CachePolicy struct {
	TimeToCache  time.Duration
	TimeToExpire time.Duration
}

// IsZero reports whether no hint is set.
func (c CachePolicy) IsZero() bool {
	return c.TimeToCache == 0 && c.TimeToExpire == 0
}

// Well-known namespaces.
const (
	DNANamespaceURI = "http://www.jboss.org/dna/1.0"
	JCRNamespaceURI = "http://www.jcp.org/jcr/1.0"
)

// NamespaceRegistry maps prefixes to URIs. It is safe for concurrent use.
type NamespaceRegistry struct {
	mu       sync.RWMutex
	prefixes map[string]string // prefix → URI
}

// NewNamespaceRegistry returns a registry preloaded with the dna and jcr
// namespaces.
func NewNamespaceRegistry() *NamespaceRegistry {
	return &NamespaceRegistry{prefixes: map[string]string{
		"dna": DNANamespaceURI,
		"jcr": JCRNamespaceURI,
	}}
}

// Register binds prefix to uri, replacing any previous binding.
func (r *NamespaceRegistry) Register(prefix, uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = uri
}

// URI returns the namespace URI for prefix.
func (r *NamespaceRegistry) URI(prefix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.prefixes[prefix]
	return uri, ok
}

// Prefix returns the prefix bound to uri.
func (r *NamespaceRegistry) Prefix(uri string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for p, u := range r.prefixes {
		if u == uri {
			return p, true
		}
	}
	return "", false
}

// Prefixes returns the registered prefixes in sorted order.
func (r *NamespaceRegistry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.prefixes))
	for p := range r.prefixes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (r *NamespaceRegistry) Clone() *NamespaceRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &NamespaceRegistry{prefixes: make(map[string]string, len(r.prefixes))}
	for p, u := range r.prefixes {
		out.prefixes[p] = u
	}
	return out
}

// ExecutionContext carries what request processing needs from its caller:
// the namespace registry used to validate names, the principal on whose
// behalf requests run, and the logger. It is never mutated; the With*
// methods derive new contexts.
type ExecutionContext struct {
	namespaces *NamespaceRegistry
	principal  string
	logger     logrus.FieldLogger
}

// NewExecutionContext returns a context with the default registry, an
// anonymous principal and the standard logrus logger.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		namespaces: NewNamespaceRegistry(),
		logger:     logrus.StandardLogger(),
	}
}

// Namespaces returns the namespace registry.
func (c *ExecutionContext) Namespaces() *NamespaceRegistry { return c.namespaces }

// Principal returns the principal name; empty means anonymous.
func (c *ExecutionContext) Principal() string { return c.principal }

// Logger returns the context logger.
func (c *ExecutionContext) Logger() logrus.FieldLogger { return c.logger }

// WithNamespaces derives a context using a different registry.
func (c *ExecutionContext) WithNamespaces(r *NamespaceRegistry) *ExecutionContext {
	out := *c
	out.namespaces = r
	return &out
}

// WithPrincipal derives a context for another principal.
func (c *ExecutionContext) WithPrincipal(name string) *ExecutionContext {
	out := *c
	out.principal = name
	if name != "" {
		out.logger = c.logger.WithField("principal", name)
	}
	return &out
}

// WithLogger derives a context with another logger.
func (c *ExecutionContext) WithLogger(l logrus.FieldLogger) *ExecutionContext {
	out := *c
	out.logger = l
	return &out
}

// ParsePath parses text and checks every prefix against the registry.
func (c *ExecutionContext) ParsePath(text string) (Path, error) {
	p, err := ParsePath(text)
	if err != nil {
		return Path{}, err
	}
	for _, prefix := range p.Namespaces() {
		if _, ok := c.namespaces.URI(prefix); !ok {
			return Path{}, ErrUnknownNamespace.New(prefix)
		}
	}
	return p, nil
}

// ParseName validates a single name against the registry.
func (c *ExecutionContext) ParseName(name string) (string, error) {
	seg, err := parseSegment(name)
	if err != nil {
		return "", ErrInvalidPath.New(name, err.Error())
	}
	if prefix, _, ok := SplitName(seg.Name); ok {
		if _, known := c.namespaces.URI(prefix); !known {
			return "", ErrUnknownNamespace.New(prefix)
		}
	}
	return seg.Name, nil
}

// CreateProperty builds a property after validating its name.
func (c *ExecutionContext) CreateProperty(name string, values ...any) (Property, error) {
	n, err := c.ParseName(name)
	if err != nil {
		return Property{}, err
	}
	return NewProperty(n, values...), nil
}
