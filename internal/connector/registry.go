package connector

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry is an in-process Locator and ConnectionFactory.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	log     logrus.FieldLogger
}

// NewRegistry returns an empty registry logging to logger (or the standard
// logrus logger when nil).
func NewRegistry(logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{sources: map[string]Source{}, log: logger}
}

// Register adds a source. Names must be unique.
func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.Name()]; ok {
		return ErrDuplicateSource.New(s.Name())
	}
	r.sources[s.Name()] = s
	r.log.WithField("source", s.Name()).Debug("registered source")
	return nil
}

// Replace adds or swaps a source.
func (r *Registry) Replace(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
	r.log.WithField("source", s.Name()).Debug("replaced source")
}

// Remove unregisters a source, reporting whether it was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[name]
	delete(r.sources, name)
	return ok
}

// Names lists the registered sources in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for n := range r.sources {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup implements Locator.
func (r *Registry) Lookup(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, ErrSourceNotFound.New(name)
	}
	return s, nil
}

// CreateConnection implements ConnectionFactory. Unknown names yield a nil
// connection and no error.
func (r *Registry) CreateConnection(sourceName string) (Connection, error) {
	r.mu.RLock()
	s, ok := r.sources[sourceName]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.Connect()
}

// RetryLimit returns the retry limit configured for a source, or 0.
func (r *Registry) RetryLimit(sourceName string) int {
	s, err := r.Lookup(sourceName)
	if err != nil {
		return 0
	}
	return s.RetryLimit()
}

var (
	_ Locator           = (*Registry)(nil)
	_ ConnectionFactory = (*Registry)(nil)
)
