// Package records defines the loosely typed row representation shared by the
// parser, dataset, and storage layers. A Record is a column-name keyed map of
// raw values; typed interpretation happens later, in the dataset layer.
package records

import "strconv"

// Record is a single parsed row. Values are strings as read from the source,
// or nil for missing cells; downstream stages may replace them with typed
// values.
type Record map[string]any

// String returns the string value for key, or def when the key is missing,
// nil, or not a string.
func (r Record) String(key, def string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Float returns the float64 value for key. It accepts float64, int, and
// numeric strings; otherwise def is returned.
func (r Record) Float(key string, def float64) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// IsNull reports whether the key is absent, nil, or an empty string.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
