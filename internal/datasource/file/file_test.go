package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"synthpipe/internal/config"
	"synthpipe/internal/datasource"
)

func TestLocalOpenReadsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	if err := os.WriteFile(path, []byte("age,income\n34,51000\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src := New(path)
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "age,income\n34,51000\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestLocalOpenMissingFile(t *testing.T) {
	t.Parallel()

	src := New(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := src.Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist, got %v", err)
	}
}

func TestLocalOpenCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("irrelevant").Open(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestBuildFromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("x\n1\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src, err := datasource.Build(config.Source{Kind: "file", File: config.SourceFile{Path: path}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()

	if _, err := datasource.Build(config.Source{Kind: "file"}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
