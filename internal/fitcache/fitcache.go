// Package fitcache is a content-addressed cache for fitted generator state.
// The key hashes everything that determines a fit: generator kind, canonical
// params, seed, and a fingerprint of the training data. Blobs live as files
// under the cache dir; a SQLite manifest tracks usage for LRU pruning.
//
// Because the key covers the inputs, a changed dataset or changed params can
// never serve a stale fit; the old entry simply stops being addressed and
// ages out.
package fitcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	_ "modernc.org/sqlite"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
)

// Cache is a content-addressed store of fitted-state blobs.
type Cache struct {
	dir        string
	maxEntries int
	db         *sql.DB
}

const manifestDDL = `
CREATE TABLE IF NOT EXISTS fits (
    key          TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    size         INTEGER NOT NULL,
    created_at   TEXT NOT NULL,
    last_used_at TEXT NOT NULL
);`

// Open creates or opens a cache rooted at dir. maxEntries bounds the number
// of cached fits (0 means unbounded); the least recently used entries are
// evicted beyond it.
func Open(ctx context.Context, dir string, maxEntries int) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("fitcache: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fitcache: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "manifest.db"))
	if err != nil {
		return nil, fmt.Errorf("fitcache: open manifest: %w", err)
	}
	if _, err := db.ExecContext(ctx, manifestDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("fitcache: init manifest: %w", err)
	}

	return &Cache{dir: dir, maxEntries: maxEntries, db: db}, nil
}

// Close releases the manifest connection.
func (c *Cache) Close() error { return c.db.Close() }

// Key derives the content address for one fit. Params are canonicalized
// through sorted-key JSON so map ordering cannot split the cache.
func Key(spec config.Generator, fp uint64) string {
	h := xxh3.New()
	_, _ = h.WriteString(spec.Kind)
	_, _ = h.WriteString("\x00")
	_, _ = h.Write(canonicalParams(spec.Options))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(fmt.Sprintf("%d", spec.Seed))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(fmt.Sprintf("%016x", fp))
	return fmt.Sprintf("%016x", h.Sum64())
}

// canonicalParams renders options as JSON with deterministic key order.
// encoding/json already sorts map keys, so one marshal pass suffices.
func canonicalParams(opts config.Options) []byte {
	if len(opts) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(map[string]any(opts))
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Fingerprint hashes a dataset's schema and cell values into a stable
// 64-bit digest. Any change to column names, kinds, row count, or values
// changes the fingerprint.
func Fingerprint(ds *dataset.Dataset) uint64 {
	h := xxh3.New()
	for _, col := range ds.Columns {
		_, _ = h.WriteString(col.Name)
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(string(col.Kind))
		_, _ = h.WriteString("\x00")
	}
	names := ds.ColumnNames()
	for _, row := range ds.Rows {
		for _, name := range names {
			_, _ = h.WriteString(row.String(name, "\x01"))
			_, _ = h.WriteString("\x00")
		}
		_, _ = h.WriteString("\x02")
	}
	return h.Sum64()
}

// Get returns the blob for key when present. A missing entry, an unreadable
// blob, or a blob file that disappeared all count as a miss; corrupt entries
// are dropped so the next Put replaces them.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	var size int64
	err := c.db.QueryRowContext(ctx, `SELECT size FROM fits WHERE key = ?`, key).Scan(&size)
	if err != nil {
		return nil, false
	}

	blob, err := os.ReadFile(c.blobPath(key))
	if err != nil || int64(len(blob)) != size {
		log.Printf("fitcache: dropping corrupt entry key=%s", key)
		c.drop(ctx, key)
		return nil, false
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := c.db.ExecContext(ctx, `UPDATE fits SET last_used_at = ? WHERE key = ?`, now, key); err != nil {
		log.Printf("fitcache: touch key=%s: %v", key, err)
	}
	return blob, true
}

// Put stores blob under key and prunes beyond the entry limit.
func (c *Cache) Put(ctx context.Context, key, kind string, blob []byte) error {
	if err := os.WriteFile(c.blobPath(key), blob, 0o644); err != nil {
		return fmt.Errorf("fitcache: write blob: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.ExecContext(ctx, `
INSERT INTO fits (key, kind, size, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET size = excluded.size, last_used_at = excluded.last_used_at`,
		key, kind, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("fitcache: record manifest: %w", err)
	}
	return c.prune(ctx)
}

// Len returns the number of manifest entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fits`).Scan(&n)
	return n, err
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.dir, key+".fit")
}

func (c *Cache) drop(ctx context.Context, key string) {
	_, _ = c.db.ExecContext(ctx, `DELETE FROM fits WHERE key = ?`, key)
	_ = os.Remove(c.blobPath(key))
}

// prune evicts least-recently-used entries beyond maxEntries.
func (c *Cache) prune(ctx context.Context) error {
	if c.maxEntries <= 0 {
		return nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT key, last_used_at FROM fits`)
	if err != nil {
		return fmt.Errorf("fitcache: prune scan: %w", err)
	}
	type entry struct{ key, used string }
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.used); err != nil {
			rows.Close()
			return fmt.Errorf("fitcache: prune scan: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("fitcache: prune scan: %w", err)
	}
	if len(entries) <= c.maxEntries {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].used < entries[j].used })
	for _, e := range entries[:len(entries)-c.maxEntries] {
		c.drop(ctx, e.key)
	}
	return nil
}
