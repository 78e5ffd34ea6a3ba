// Command dataprobe inspects a CSV file and prints a starter run config:
// canonical headers, inferred column kinds, and sensible defaults for the
// remaining sections. The output is meant to be edited, not executed as-is.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
	csvparser "synthpipe/internal/parser/csv"
)

func main() {
	var (
		path  string
		comma string
		limit int
	)
	flag.StringVar(&path, "file", "", "CSV file to probe (required)")
	flag.StringVar(&comma, "comma", ",", "field delimiter")
	flag.IntVar(&limit, "limit", 5000, "max rows to sample for kind inference")
	flag.Parse()

	if path == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	opt := csvparser.Options{HasHeader: true, TrimSpace: true, Comma: []rune(comma)[0]}
	columns, rows, skipped, err := csvparser.NewParser(opt).Parse(f)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	ds, err := dataset.New(columns, rows, nil)
	if err != nil {
		log.Fatalf("infer: %v", err)
	}

	fmt.Fprintf(os.Stderr, "probed %d rows (%d skipped), %d columns:\n", len(rows), skipped, len(columns))
	types := map[string]string{}
	for _, c := range ds.Columns {
		fmt.Fprintf(os.Stderr, "  %-24s %s\n", c.Name, c.Kind)
		types[c.Name] = string(c.Kind)
	}

	job := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	run := config.Run{
		Job:       job,
		Source:    config.Source{Kind: "file", File: config.SourceFile{Path: path}},
		Parser:    config.Parser{Kind: "csv", Options: config.Options{"has_header": true}},
		Loader:    config.Loader{Types: types},
		Generator: config.Generator{Kind: "marginal", Seed: 1, Options: config.Options{}},
		Generate:  config.Generate{Count: len(rows)},
		Evaluate:  config.Evaluate{Metrics: []string{"fidelity", "privacy"}, Holdout: 0.25},
		Cache:     config.Cache{Dir: ".fitcache", MaxEntries: 32},
		Output:    config.Output{Kind: "csvfile", Path: job + "_synthetic.csv"},
		Runtime:   config.RuntimeConfig{GenerateWorkers: 4, BatchSize: 500},
	}

	out, err := config.MarshalRun(run)
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Println(string(out))
}
