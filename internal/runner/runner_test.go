package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"synthpipe/internal/classifier"
	"synthpipe/internal/config"
	_ "synthpipe/internal/datasource/file"
	_ "synthpipe/internal/generator/all"
	_ "synthpipe/internal/parser/csv"
	_ "synthpipe/internal/storage/all"
	"synthpipe/pkg/records"
)

// writeFixture produces a small census-style CSV where hiring depends on
// the score column.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("sex,score,hired\n")
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		sex := "f"
		if r.Intn(2) == 0 {
			sex = "m"
		}
		score := 40 + r.Intn(60)
		hired := "no"
		if score > 70 {
			hired = "yes"
		}
		fmt.Fprintf(&b, "%s,%d,%s\n", sex, score, hired)
	}
	path := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runConfig(input, outPath, cacheDir string) config.Run {
	return config.Run{
		Job:    "people_test",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: input}},
		Parser: config.Parser{Kind: "csv", Options: config.Options{}},
		Loader: config.Loader{
			Target:    "hired",
			Sensitive: []string{"sex"},
		},
		Generator: config.Generator{Kind: "marginal", Seed: 7, Options: config.Options{}},
		Generate:  config.Generate{Count: 200},
		Evaluate:  config.Evaluate{Metrics: []string{"fidelity", "privacy"}},
		Cache:     config.Cache{Dir: cacheDir, MaxEntries: 8},
		Output:    config.Output{Kind: "csvfile", Path: outPath},
		Runtime:   config.RuntimeConfig{GenerateWorkers: 2, BatchSize: 64},
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)
	outPath := filepath.Join(dir, "synthetic.csv")

	cfg := runConfig(input, outPath, filepath.Join(dir, "cache"))
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Summary.Rows != 300 {
		t.Errorf("loaded rows = %d, want 300", out.Summary.Rows)
	}
	if out.Summary.Generated != 200 {
		t.Errorf("generated = %d, want 200", out.Summary.Generated)
	}
	if out.Summary.Inserted != out.Summary.Generated {
		t.Errorf("inserted %d != generated %d", out.Summary.Inserted, out.Summary.Generated)
	}
	if out.Summary.Batches < 1 {
		t.Errorf("batches = %d, want >= 1", out.Summary.Batches)
	}
	if out.Summary.CacheHit {
		t.Error("first run should not hit the cache")
	}
	if len(out.Scores.Scores) == 0 {
		t.Error("expected evaluation scores")
	}
	if !strings.Contains(out.Report, "METRIC") || !strings.Contains(out.Report, "rows generated") {
		t.Errorf("report incomplete:\n%s", out.Report)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open sink output: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read sink output: %v", err)
	}
	if got := len(recs); got != 201 { // header + 200 rows
		t.Errorf("sink file rows = %d, want 201", got)
	}
	if got := recs[0]; len(got) != 3 || got[0] != "sex" {
		t.Errorf("sink header = %v", got)
	}
}

func TestRunSecondTimeHitsCache(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)
	cacheDir := filepath.Join(dir, "cache")

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), cacheDir)
	if _, err := New(cfg).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg.Output.Path = filepath.Join(dir, "b.csv")
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !out.Summary.CacheHit {
		t.Error("second run with identical spec and data should hit the cache")
	}
}

func TestRunDisabledCacheAlwaysFits(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), filepath.Join(dir, "cache"))
	cfg.Cache.Disabled = true
	if _, err := New(cfg).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg.Output.Path = filepath.Join(dir, "b.csv")
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if out.Summary.CacheHit {
		t.Error("disabled cache must never report a hit")
	}
}

func TestRunUnknownConditionColumn(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), "")
	cfg.Generate.Conditions = map[string]string{"nope": "x"}
	if _, err := New(cfg).Run(context.Background()); err == nil {
		t.Fatal("expected error for condition on unknown column")
	}
}

func TestRunConditionalGeneration(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), "")
	cfg.Evaluate.Metrics = nil
	cfg.Generate.Conditions = map[string]string{"sex": "f"}
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Summary.Generated != 200 {
		t.Fatalf("generated = %d, want 200", out.Summary.Generated)
	}

	f, err := os.Open(cfg.Output.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	for i, rec := range recs[1:] {
		if rec[0] != "f" {
			t.Fatalf("row %d: sex = %q, want pinned %q", i, rec[0], "f")
		}
	}
}

func TestRunExportsModel(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), "")
	cfg.Evaluate.ExportModel = filepath.Join(dir, "model.json")
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Summary.Generated != 200 {
		t.Fatalf("generated = %d", out.Summary.Generated)
	}

	blob, err := os.ReadFile(cfg.Evaluate.ExportModel)
	if err != nil {
		t.Fatalf("read exported model: %v", err)
	}
	model, err := classifier.ImportJSON(blob)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if model.Target != "hired" {
		t.Errorf("model target = %q, want hired", model.Target)
	}
	got := model.Predict(records.Record{"sex": "f", "score": "95"})
	if got != "yes" && got != "no" {
		t.Errorf("Predict = %q, want a label", got)
	}
}

func TestRunTemporalSequences(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("patient,visit,score\n")
	for p := 0; p < 50; p++ {
		for v := 0; v < 4; v++ {
			fmt.Fprintf(&b, "p%02d,%d,%d\n", p, v, 50+p+v)
		}
	}
	input := filepath.Join(dir, "visits.csv")
	if err := os.WriteFile(input, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), "")
	cfg.Evaluate.Metrics = nil
	cfg.Loader = config.Loader{
		Temporal: &config.Temporal{ID: "patient", Time: "visit", Features: []string{"score"}},
	}
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Summary.Sequences != 50 {
		t.Errorf("sequences = %d, want 50", out.Summary.Sequences)
	}
	if !strings.Contains(out.Report, "sequences:") {
		t.Errorf("report missing sequence count:\n%s", out.Report)
	}
}

func TestRunDefaultCountMatchesInput(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	cfg := runConfig(input, filepath.Join(dir, "a.csv"), "")
	cfg.Evaluate.Metrics = nil
	cfg.Generate.Count = 0
	out, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Summary.Generated != 300 {
		t.Errorf("generated = %d, want the real row count 300", out.Summary.Generated)
	}
}
