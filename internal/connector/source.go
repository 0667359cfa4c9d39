package connector

import (
	"sync/atomic"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

// ErrConnectionClosed is returned when a closed connection is used.
var ErrConnectionClosed = errors.NewKind("connection to %q is closed")

// SourceOption configures a StoreSource.
type SourceOption func(*StoreSource)

// WithCachePolicy sets the source's default cache hint.
func WithCachePolicy(c graph.CachePolicy) SourceOption {
	return func(s *StoreSource) { s.cache = c }
}

// WithRetryLimit sets the source's retry limit.
func WithRetryLimit(n int) SourceOption {
	return func(s *StoreSource) { s.retryLimit = n }
}

// StoreSource serves connections backed by a Store.
type StoreSource struct {
	name       string
	store      Store
	cache      graph.CachePolicy
	retryLimit int
	open       atomic.Int64
}

// NewStoreSource wraps store as the named source.
func NewStoreSource(name string, store Store, opts ...SourceOption) *StoreSource {
	s := &StoreSource{name: name, store: store}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements Source.
func (s *StoreSource) Name() string { return s.name }

// RetryLimit implements Source.
func (s *StoreSource) RetryLimit() int { return s.retryLimit }

// Store returns the underlying store.
func (s *StoreSource) Store() Store { return s.store }

// OpenConnections is the number of connections not yet closed.
func (s *StoreSource) OpenConnections() int64 { return s.open.Load() }

// Connect implements Source.
func (s *StoreSource) Connect() (Connection, error) {
	s.open.Add(1)
	return &storeConnection{source: s, proc: NewStoreProcessor(s.name, s.store)}, nil
}

type storeConnection struct {
	source *StoreSource
	proc   *StoreProcessor
	closed atomic.Bool
}

func (c *storeConnection) SourceName() string { return c.source.name }

func (c *storeConnection) DefaultCachePolicy() graph.CachePolicy { return c.source.cache }

func (c *storeConnection) Execute(ctx *graph.ExecutionContext, r request.Request) error {
	if c.closed.Load() {
		return ErrConnectionClosed.New(c.source.name)
	}
	request.Process(c.proc, r)
	return nil
}

func (c *storeConnection) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.source.open.Add(-1)
	}
	return nil
}
