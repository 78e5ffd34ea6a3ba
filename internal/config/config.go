// Package config defines the canonical, JSON-serializable configuration model
// for a synthesis run. It is intentionally small, explicit, and dependency-
// free so that run specs can be loaded from disk (or other sources) and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/runs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":      "adult_marginal",
//	  "source":   { "kind": "file", "file": { "path": "data/adult.csv" } },
//	  "parser":   { "kind": "csv", "options": { "has_header": true } },
//	  "loader":   { "target": "income", "sensitive": ["sex"] },
//	  "generator":{ "kind": "marginal", "seed": 7 },
//	  "generate": { "count": 5000 },
//	  "output":   { "kind": "sqlite", "db": { "dsn": "synth.db", "table": "synthetic" } }
//	}
package config

import "encoding/json"

// Run describes one full synthesis run in JSON. It is the top-level object
// decoded from a run file (e.g., configs/runs/*.json).
type Run struct {
	// Job names the run for metrics labeling and cache/report identification.
	Job string `json:"job"`

	// Source describes where input data comes from (e.g., local file, http).
	Source Source `json:"source"`

	// Parser configures how raw bytes are turned into records (e.g., CSV).
	Parser Parser `json:"parser"`

	// Loader attaches dataset metadata: target, sensitive columns, group
	// column, survival columns, and optional type overrides.
	Loader Loader `json:"loader"`

	// Generator selects and parameterizes the synthetic data model.
	Generator Generator `json:"generator"`

	// Generate controls how many rows to sample and under which conditions.
	Generate Generate `json:"generate"`

	// Evaluate selects the metric groups computed after generation.
	Evaluate Evaluate `json:"evaluate"`

	// Cache configures the fitted-model cache.
	Cache Cache `json:"cache"`

	// Output describes where synthetic records are written.
	Output Output `json:"output"`

	// Runtime controls concurrency, batching, and channel buffer sizes.
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	GenerateWorkers int `json:"generate_workers"`
	BatchSize       int `json:"batch_size"`
	ChannelBuffer   int `json:"channel_buffer"`
}

// Source identifies the data source. Additional kinds can be added over time.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// HTTP carries options for the "http" source kind.
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	// URL is fetched with GET; non-2xx responses fail the run.
	URL string `json:"url"`
}

// Parser selects how to parse the raw source into logical rows/columns.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV, typical keys include:
	//   has_header (bool), comma (string), trim_space (bool),
	//   lazy_quotes (bool), header_map (object)
	Options Options `json:"options"`
}

// Loader attaches advisory metadata to the parsed dataset. Column references
// are validated against the parsed header before the run proceeds.
type Loader struct {
	// Target is the outcome column consumed by utility and fairness metrics.
	Target string `json:"target"`

	// Sensitive lists protected columns (fairness metrics use the first).
	Sensitive []string `json:"sensitive"`

	// Domain optionally names a group/domain column used for conditional
	// generation.
	Domain string `json:"domain"`

	// TimeToEvent and Event name the survival framing columns; both must be
	// set or both empty.
	TimeToEvent string `json:"time_to_event"`
	Event       string `json:"event"`

	// Temporal optionally declares the sequence decomposition of the table.
	Temporal *Temporal `json:"temporal,omitempty"`

	// Types overrides inferred column kinds; values are one of
	// "categorical", "integer", "continuous", "datetime".
	Types map[string]string `json:"types,omitempty"`
}

// Temporal describes how rows decompose into per-entity observation
// sequences.
type Temporal struct {
	// ID is the column identifying the entity a row belongs to.
	ID string `json:"id"`

	// Time is the observation timestamp/order column.
	Time string `json:"time"`

	// Features lists the columns that vary over time; the remaining columns
	// form the static portion.
	Features []string `json:"features"`
}

// Generator selects the model and its hyperparameters.
type Generator struct {
	// Kind selects the generator implementation (e.g., "marginal", "causal").
	Kind string `json:"kind"`

	// Seed feeds the generator's random source; runs with the same spec and
	// seed are reproducible.
	Seed int64 `json:"seed"`

	// Options is a free-form map interpreted by the generator implementation.
	// Common keys: epsilon (float), bins (int), dag ([][2]string),
	// suppress ([][2]string).
	Options Options `json:"options"`
}

// Generate controls the sampling request issued after fitting.
type Generate struct {
	// Count is the number of synthetic rows; 0 means "as many as the real
	// dataset".
	Count int `json:"count"`

	// Conditions pins categorical columns to fixed values during sampling
	// (conditional generation).
	Conditions map[string]string `json:"conditions,omitempty"`
}

// Evaluate selects metric groups and the evaluation split.
type Evaluate struct {
	// Metrics lists the metric groups to run ("fidelity", "privacy",
	// "utility", "fairness", "augment"). Empty means evaluation is skipped.
	Metrics []string `json:"metrics"`

	// Holdout is the fraction of real rows reserved for evaluation;
	// defaults to 0.25.
	Holdout float64 `json:"holdout"`

	// ExportModel, when set, writes the classifier trained on the synthetic
	// data as JSON to this path so downstream consumers can load it.
	// Requires loader.target.
	ExportModel string `json:"export_model,omitempty"`
}

// Cache configures the fitted-model cache.
type Cache struct {
	// Dir is the cache directory; empty disables caching.
	Dir string `json:"dir"`

	// MaxEntries bounds the number of cached fits; least recently used
	// entries are pruned beyond it. 0 means unbounded.
	MaxEntries int `json:"max_entries"`

	// Disabled forces a fresh fit even when Dir is set.
	Disabled bool `json:"disabled"`
}

// Output selects the sink used to persist synthetic records.
type Output struct {
	// Kind selects the storage implementation: "csvfile", "sqlite",
	// "postgres", or "mysql".
	Kind string `json:"kind"`

	// DB configures database-backed sinks.
	DB DBConfig `json:"db"`

	// Path is the destination file for the "csvfile" sink.
	Path string `json:"path"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the connection string for the selected driver.
	DSN string `json:"dsn"`

	// Table is the destination table name (fully qualified for postgres,
	// e.g. "public.synthetic").
	Table string `json:"table"`

	// AutoCreateTable creates the destination table from the dataset schema
	// before loading.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for parser/generator-specific configuration where the shape
// varies by implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Float returns the float64 value for key or def when missing or not numeric.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// PairSlice returns a [][2]string for key when the value is an array of
// two-element string arrays. Malformed entries are skipped. This is the shape
// used for DAG edge lists ("dag", "suppress").
func (o Options) PairSlice(key string) [][2]string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][2]string, 0, len(arr))
	for _, x := range arr {
		pair, ok := x.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		a, aok := pair[0].(string)
		b, bok := pair[1].(string)
		if aok && bok {
			out = append(out, [2]string{a, b})
		}
	}
	return out
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// MarshalRun renders a Run as indented JSON, e.g. for the dataprobe starter
// config output.
func MarshalRun(r Run) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
