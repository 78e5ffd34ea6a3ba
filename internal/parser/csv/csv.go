// Package csv implements a streaming CSV parser. It reads row by row through
// encoding/csv without buffering the whole input, canonicalizes headers to
// snake_case ASCII, and soft-drops malformed rows so one bad line does not
// fail a run.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"synthpipe/internal/config"
	"synthpipe/internal/parser"
	"synthpipe/pkg/records"
)

func init() {
	parser.Register("csv", func(opt config.Options) (parser.Parser, error) {
		return NewParser(OptionsFrom(opt)), nil
	})
}

// Options configures the CSV parser. Zero values get sensible defaults.
type Options struct {
	// HasHeader indicates whether the first row holds column names.
	HasHeader bool

	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// TrimSpace trims surrounding spaces from each cell.
	TrimSpace bool

	// LazyQuotes relaxes quote handling for real-world exports.
	LazyQuotes bool

	// HeaderMap renames source headers to canonical keys before the
	// default normalization runs. Keys are matched against the raw header
	// cell after trimming.
	HeaderMap map[string]string
}

// OptionsFrom reads parser options out of a run config section. Defaults
// follow common CSV exports: header row present, comma delimiter, trimmed
// cells.
func OptionsFrom(opt config.Options) Options {
	return Options{
		HasHeader:  opt.Bool("has_header", true),
		Comma:      opt.Rune("comma", ','),
		TrimSpace:  opt.Bool("trim_space", true),
		LazyQuotes: opt.Bool("lazy_quotes", false),
		HeaderMap:  opt.StringMap("header_map"),
	}
}

// Parser parses CSV input according to Options. Reusable across inputs but
// not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// softDropLogLimit caps per-run row-skip log noise.
const softDropLogLimit = 400

// Parse consumes CSV records from r and returns the canonical column order,
// the parsed rows, and the number of rows skipped for parse errors or width
// mismatches. Empty cells become nil so downstream null handling is uniform.
func (p *Parser) Parse(r io.Reader) ([]string, []records.Record, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.LazyQuotes = p.opt.LazyQuotes
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // width enforced after read

	var columns []string
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		columns = p.canonicalHeaders(h)
	}

	var rows []records.Record
	var skipped int

	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < softDropLogLimit {
				log.Printf("skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}

		if columns == nil {
			// Headerless input: first data row fixes the width.
			columns = syntheticHeaders(len(row))
		}
		if len(row) != len(columns) {
			if skipped < softDropLogLimit {
				log.Printf("skipping row %d: expected %d fields, got %d", line, len(columns), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			if val == "" {
				rec[columns[i]] = nil
			} else {
				rec[columns[i]] = val
			}
		}
		rows = append(rows, rec)
	}

	return columns, rows, skipped, nil
}

// canonicalHeaders maps raw header cells to canonical keys. HeaderMap
// entries win; everything else goes through Canonical. Duplicate results get
// a positional suffix so record keys stay unique.
func (p *Parser) canonicalHeaders(h []string) []string {
	out := make([]string, len(h))
	seen := make(map[string]bool, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, "\uFEFF")
		}
		key := ""
		if p.opt.HeaderMap != nil {
			key = p.opt.HeaderMap[c]
		}
		if key == "" {
			key = Canonical(c)
		}
		if key == "" {
			key = fmt.Sprintf("col_%d", i)
		}
		if seen[key] {
			key = fmt.Sprintf("%s_%d", key, i)
		}
		seen[key] = true
		out[i] = key
	}
	return out
}

func syntheticHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i)
	}
	return out
}
