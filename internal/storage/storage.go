// Package storage abstracts where synthetic rows are written. Backends
// register themselves in a named factory; callers stay backend-agnostic and
// talk to the Repository interface only.
package storage

import (
	"context"
	"fmt"
	"sync"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
)

// Repository is one open sink connection.
type Repository interface {
	// CopyFrom bulk-inserts rows; each row's values align with columns.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs an arbitrary statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Close releases the connection.
	Close()
}

// Config carries everything a backend needs to open a sink.
type Config struct {
	Kind  string
	DSN   string
	Table string

	// Path is the destination file for file-backed sinks.
	Path string

	// Schema is the dataset schema, used by DDL bootstrap.
	Schema []dataset.Column
}

// FromOutput builds a Config from the run's output section plus the dataset
// schema.
func FromOutput(out config.Output, schema []dataset.Column) Config {
	return Config{
		Kind:   out.Kind,
		DSN:    out.DB.DSN,
		Table:  out.DB.Table,
		Path:   out.Path,
		Schema: schema,
	}
}

// Factory constructs a Repository for one storage kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind. Backends
// call this from init; tests use it to install fakes.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
