package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"synthpipe/internal/storage"
)

func TestCopyFromWritesHeaderAndRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "synth.csv")
	repo, err := storage.New(ctx, storage.Config{Kind: "csvfile", Path: path})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	cols := []string{"age", "sex"}
	if _, err := repo.CopyFrom(ctx, cols, [][]any{{"34", "F"}, {"29", nil}}); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if _, err := repo.CopyFrom(ctx, cols, [][]any{{"61", "M"}}); err != nil {
		t.Fatalf("CopyFrom second batch: %v", err)
	}
	repo.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d lines, want 4 (header + 3 rows)", len(got))
	}
	if got[0][0] != "age" || got[0][1] != "sex" {
		t.Fatalf("header = %v", got[0])
	}
	if got[2][1] != "" {
		t.Fatalf("nil cell should be empty, got %q", got[2][1])
	}
}

func TestCopyFromRejectsWidthChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, err := New(filepath.Join(t.TempDir(), "out.csv"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	if _, err := repo.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1", "2"}}); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if _, err := repo.CopyFrom(ctx, []string{"a"}, [][]any{{"1"}}); err == nil {
		t.Fatal("expected error for changed columns")
	}
	if _, err := repo.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1"}}); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
