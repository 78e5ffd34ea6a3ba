// Package datasource abstracts where raw dataset bytes come from. A run
// declares its source in config; Build resolves that declaration into a
// Source the parser can stream from.
package datasource

import (
	"context"
	"fmt"
	"io"

	"synthpipe/internal/config"
)

// Source yields a byte stream for one dataset. Open may be called more than
// once per run (e.g. a probe pass followed by the real load), so
// implementations must return a fresh reader each time.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Builder constructs a Source from the run's source config section.
type Builder func(cfg config.Source) (Source, error)

var builders = map[string]Builder{}

// Register installs a Builder for the given source kind. Later registrations
// for the same kind win, which lets tests install fakes.
func Register(kind string, b Builder) {
	builders[kind] = b
}

// Build resolves a source declaration into a Source.
func Build(cfg config.Source) (Source, error) {
	b, ok := builders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return b(cfg)
}

// Kinds returns the registered source kinds.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	return out
}
