// Package connector defines how the engine reaches back-end sources: a
// Source hands out Connections, a ConnectionFactory resolves source names,
// and Execute runs one request over one freshly acquired connection.
package connector

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

var (
	// ErrSourceNotFound is returned when a factory does not know a source.
	ErrSourceNotFound = errors.NewKind("source %q not found")

	// ErrRepositorySource wraps a foreign error raised by a source.
	ErrRepositorySource = errors.NewKind("error in source %q")

	// ErrDuplicateSource is returned when a name is registered twice.
	ErrDuplicateSource = errors.NewKind("source %q is already registered")
)

// Connection executes requests against one source. Connections are not
// safe for concurrent use and are closed exactly once.
type Connection interface {
	// SourceName names the source behind the connection.
	SourceName() string
	// Execute processes r, recording results and errors on r. The returned
	// error is reserved for failures that prevented processing at all.
	Execute(ctx *graph.ExecutionContext, r request.Request) error
	// DefaultCachePolicy is the source's cache hint.
	DefaultCachePolicy() graph.CachePolicy
	Close() error
}

// ConnectionFactory resolves a source name to a new connection. A nil
// connection with a nil error means the source is unknown.
type ConnectionFactory interface {
	CreateConnection(sourceName string) (Connection, error)
}

// Source is a named back-end that hands out connections.
type Source interface {
	Name() string
	Connect() (Connection, error)
	// RetryLimit is how many times callers may retry obtaining a usable
	// connection. The engine itself never retries.
	RetryLimit() int
}

// Locator resolves sources by name. It stands in for any ambient registry:
// components receive a Locator explicitly.
type Locator interface {
	Lookup(name string) (Source, error)
}
