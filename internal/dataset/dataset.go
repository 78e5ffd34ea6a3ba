// Package dataset models a parsed table with typed columns plus the run
// metadata that binds generator and metric behavior to specific columns.
package dataset

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"synthpipe/pkg/records"
)

// Kind classifies a column for modeling purposes.
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindInteger     Kind = "integer"
	KindContinuous  Kind = "continuous"
	KindDatetime    Kind = "datetime"
)

// ValidKind reports whether s names a known column kind.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindCategorical, KindInteger, KindContinuous, KindDatetime:
		return true
	}
	return false
}

// Column pairs a canonical column name with its inferred or declared kind.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is an ordered set of typed columns and their rows. Rows hold
// string values (or nil for null); the Kind drives interpretation.
type Dataset struct {
	Columns []Column
	Rows    []records.Record
}

// inferSampleLimit caps how many values kind inference examines per column.
const inferSampleLimit = 1000

// datetimeLayouts are tried in order during kind inference and temporal
// ordering.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// New builds a Dataset over the parsed columns and rows, inferring each
// column's kind from its values. Overrides (column name to kind name) win
// over inference; an override naming an unknown kind or column is an error.
func New(columns []string, rows []records.Record, overrides map[string]string) (*Dataset, error) {
	byName := make(map[string]bool, len(columns))
	for _, c := range columns {
		byName[c] = true
	}
	for col, kind := range overrides {
		if !byName[col] {
			return nil, fmt.Errorf("type override for unknown column %q", col)
		}
		if !ValidKind(kind) {
			return nil, fmt.Errorf("type override for %q: unknown kind %q", col, kind)
		}
	}

	ds := &Dataset{
		Columns: make([]Column, len(columns)),
		Rows:    rows,
	}
	for i, name := range columns {
		kind := Kind("")
		if ov, ok := overrides[name]; ok {
			kind = Kind(ov)
		} else {
			kind = inferKind(name, rows)
		}
		ds.Columns[i] = Column{Name: name, Kind: kind}
	}
	return ds, nil
}

// inferKind samples non-null values of one column and picks the narrowest
// kind that fits all of them. Order of preference: integer, continuous,
// datetime, categorical. A column with no non-null values is categorical.
func inferKind(name string, rows []records.Record) Kind {
	allInt, allFloat, allTime := true, true, true
	seen := 0
	for _, r := range rows {
		if seen >= inferSampleLimit {
			break
		}
		v := r.String(name, "")
		if v == "" {
			continue
		}
		seen++
		// Every hypothesis checks every value; a value that only fits a
		// broader kind must not survive into a narrower verdict.
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allTime {
			if _, ok := parseDatetime(v); !ok {
				allTime = false
			}
		}
		if !allInt && !allFloat && !allTime {
			return KindCategorical
		}
	}
	switch {
	case seen == 0:
		return KindCategorical
	case allInt:
		return KindInteger
	case allFloat:
		return KindContinuous
	case allTime:
		return KindDatetime
	}
	return KindCategorical
}

func parseDatetime(v string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the column definition for name.
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// KindOf returns the kind of the named column, or KindCategorical when the
// column is unknown.
func (d *Dataset) KindOf(name string) Kind {
	if c, ok := d.Column(name); ok {
		return c.Kind
	}
	return KindCategorical
}

// Strings returns the non-null values of one column in row order.
func (d *Dataset) Strings(name string) []string {
	out := make([]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		if v := r.String(name, ""); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Floats returns the parseable numeric values of one column in row order.
// Null and unparseable cells are skipped.
func (d *Dataset) Floats(name string) []float64 {
	out := make([]float64, 0, len(d.Rows))
	for _, r := range d.Rows {
		v := r.String(name, "")
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// WithRows returns a Dataset sharing this one's schema over different rows.
func (d *Dataset) WithRows(rows []records.Record) *Dataset {
	return &Dataset{Columns: d.Columns, Rows: rows}
}

// Split partitions rows into train and eval subsets. holdout is the eval
// fraction; the shuffle is seeded so the same seed always yields the same
// partition. At least one row stays on each side when there are two or more
// rows.
func (d *Dataset) Split(holdout float64, seed int64) (train, eval *Dataset) {
	n := len(d.Rows)
	if n == 0 {
		return d.WithRows(nil), d.WithRows(nil)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	k := int(float64(n) * holdout)
	if k < 1 && n > 1 {
		k = 1
	}
	if k >= n {
		k = n - 1
	}

	evalRows := make([]records.Record, 0, k)
	trainRows := make([]records.Record, 0, n-k)
	for i, p := range perm {
		if i < k {
			evalRows = append(evalRows, d.Rows[p])
		} else {
			trainRows = append(trainRows, d.Rows[p])
		}
	}
	return d.WithRows(trainRows), d.WithRows(evalRows)
}
