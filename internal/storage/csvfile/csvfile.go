// Package csvfile implements the "csvfile" sink: synthetic rows written to
// a local CSV file with a header row. It keeps runs dependency-free when no
// database is around, and gives tests a sink with real I/O.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"synthpipe/internal/storage"
)

func init() {
	storage.Register("csvfile", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return New(cfg.Path)
	})
	// Files need no DDL; registering a no-op keeps auto_create_table usable
	// across every kind.
	storage.RegisterDDL("csvfile", func(ctx context.Context, repo storage.Repository, cfg storage.Config) error {
		return nil
	})
}

// Repository writes rows to one CSV file. The header is taken from the
// first CopyFrom call's columns.
type Repository struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	header []string
}

// New creates (truncating) the destination file.
func New(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("csvfile: path must not be empty")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csvfile: create %s: %w", path, err)
	}
	return &Repository{f: f, w: csv.NewWriter(f)}, nil
}

// CopyFrom appends rows, writing the header first. Nil cells become empty
// fields; all later calls must use the same column order.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.header == nil {
		if err := r.w.Write(columns); err != nil {
			return 0, fmt.Errorf("csvfile: write header: %w", err)
		}
		r.header = append([]string(nil), columns...)
	}
	if len(columns) != len(r.header) {
		return 0, fmt.Errorf("csvfile: column count changed from %d to %d", len(r.header), len(columns))
	}

	var written int64
	cells := make([]string, len(columns))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if len(row) != len(columns) {
			return written, fmt.Errorf("csvfile: row length %d != columns length %d", len(row), len(columns))
		}
		for i, v := range row {
			if v == nil {
				cells[i] = ""
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := r.w.Write(cells); err != nil {
			return written, fmt.Errorf("csvfile: write row: %w", err)
		}
		written++
	}
	r.w.Flush()
	return written, r.w.Error()
}

// Exec is a no-op; files have no DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error { return nil }

// Close flushes and closes the file.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	_ = r.f.Close()
}
