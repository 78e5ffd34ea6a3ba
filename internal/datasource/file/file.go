// Package file implements the "file" source kind: datasets read from the
// local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"synthpipe/internal/config"
	"synthpipe/internal/datasource"
)

func init() {
	datasource.Register("file", func(cfg config.Source) (datasource.Source, error) {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file source: path is empty")
		}
		return &Local{path: cfg.File.Path}, nil
	})
}

// Local reads a dataset from a local path. Safe for concurrent use; each
// Open returns an independent *os.File.
type Local struct{ path string }

// New returns a Local bound to path.
func New(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading. A canceled context returns
// the context error without touching the filesystem. Filesystem errors are
// wrapped with the path and stay inspectable via errors.Is (e.g.
// os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
