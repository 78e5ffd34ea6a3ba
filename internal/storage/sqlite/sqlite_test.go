package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"synthpipe/internal/dataset"
	"synthpipe/internal/storage"
)

func TestEndToEndInsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "synth.db")
	cfg := storage.Config{
		Kind:  "sqlite",
		DSN:   dsn,
		Table: "synthetic",
		Schema: []dataset.Column{
			{Name: "age", Kind: dataset.KindInteger},
			{Name: "bmi", Kind: dataset.KindContinuous},
			{Name: "sex", Kind: dataset.KindCategorical},
		},
	}

	repo, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	if err := storage.EnsureTable(ctx, repo, cfg); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	cols := []string{"age", "bmi", "sex"}
	n, err := repo.CopyFrom(ctx, cols, [][]any{
		{"34", "21.5", "F"},
		{"29", "18.9", nil},
	})
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d rows, want 2", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM synthetic`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("table holds %d rows, want 2", count)
	}

	var sex sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT sex FROM synthetic WHERE age = 29`).Scan(&sex); err != nil {
		t.Fatalf("select null cell: %v", err)
	}
	if sex.Valid {
		t.Fatalf("nil cell stored as %q, want NULL", sex.String)
	}
}

func TestCopyFromRowWidthMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, err := New(ctx, filepath.Join(t.TempDir(), "w.db"), "t")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	if err := repo.Exec(ctx, `CREATE TABLE t (a TEXT, b TEXT)`); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if _, err := repo.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"only-one"}}); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), "  ", "t"); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
