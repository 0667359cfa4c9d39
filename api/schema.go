// Package api defines the federation file format read by the fedgraph CLI.
//
//	cache {
//	  time_to_cache  = "30s"
//	  time_to_expire = "5m"
//	}
//
//	source "content" {
//	  kind = "sqlite"
//	  path = "content.db"
//	}
//
//	projection "content" {
//	  rules = ["/docs => /", "/archive => /old $ /old/tmp"]
//	}
//
// The same structure is accepted as HCL-flavoured JSON in .json files.
package api

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Source kinds understood by the CLI.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindDir    = "dir"
	KindJSON   = "json"
)

// Federation is the root of a federation file.
type Federation struct {
	// Name of the repository; defaults to "fedgraph".
	Name string `hcl:"name,optional"`
	// Cache is the repository's default cache hint.
	Cache *Cache `hcl:"cache,block"`
	// Sources declares the back-end sources.
	Sources []Source `hcl:"source,block"`
	// Projections map sources into the repository, in precedence order.
	Projections []Projection `hcl:"projection,block"`
}

// Cache is written with Go duration strings.
type Cache struct {
	TimeToCache  string `hcl:"time_to_cache,optional"`
	TimeToExpire string `hcl:"time_to_expire,optional"`
}

// Source declares one source.
type Source struct {
	Name string `hcl:"name,label"`
	// Kind is one of memory, sqlite, dir, json.
	Kind string `hcl:"kind"`
	// Path is the database file, directory or JSON document.
	Path string `hcl:"path,optional"`
	// Root is a JSONPath selecting the served object of a json source.
	Root       string `hcl:"root,optional"`
	RetryLimit int    `hcl:"retry_limit,optional"`
}

// Projection lists the rules of one source.
type Projection struct {
	Source string   `hcl:"source,label"`
	Rules  []string `hcl:"rules"`
}

// Durations parses the cache block. A missing block yields zero durations.
func (c *Cache) Durations() (toCache, toExpire time.Duration, err error) {
	if c == nil {
		return 0, 0, nil
	}
	if c.TimeToCache != "" {
		if toCache, err = time.ParseDuration(c.TimeToCache); err != nil {
			return 0, 0, fmt.Errorf("time_to_cache: %w", err)
		}
	}
	if c.TimeToExpire != "" {
		if toExpire, err = time.ParseDuration(c.TimeToExpire); err != nil {
			return 0, 0, fmt.Errorf("time_to_expire: %w", err)
		}
	}
	return toCache, toExpire, nil
}

// LoadFile decodes a federation file and checks that every projection names
// a declared source. Relative source paths are resolved against the file's
// directory.
func LoadFile(path string) (*Federation, error) {
	var f Federation
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("load federation %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("load federation %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range f.Sources {
		if p := f.Sources[i].Path; p != "" && p != ":memory:" && !filepath.IsAbs(p) {
			f.Sources[i].Path = filepath.Join(dir, p)
		}
	}
	if f.Name == "" {
		f.Name = "fedgraph"
	}
	return &f, nil
}

// Validate checks source kinds and projection references.
func (f *Federation) Validate() error {
	seen := map[string]bool{}
	for _, s := range f.Sources {
		if seen[s.Name] {
			return fmt.Errorf("source %q declared twice", s.Name)
		}
		seen[s.Name] = true
		switch s.Kind {
		case KindMemory:
		case KindSQLite, KindDir, KindJSON:
			if s.Path == "" {
				return fmt.Errorf("source %q of kind %s needs a path", s.Name, s.Kind)
			}
		default:
			return fmt.Errorf("source %q has unknown kind %q", s.Name, s.Kind)
		}
	}
	for _, p := range f.Projections {
		if !seen[p.Source] {
			return fmt.Errorf("projection for undeclared source %q", p.Source)
		}
	}
	if _, _, err := f.Cache.Durations(); err != nil {
		return err
	}
	return nil
}
