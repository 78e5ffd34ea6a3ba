package dataset

import (
	"fmt"
	"sort"
	"strconv"

	"synthpipe/internal/config"
	"synthpipe/pkg/records"
)

// Meta names the columns that carry modeling semantics. All references are
// validated against the dataset schema when the Loader is built.
type Meta struct {
	// Target is the outcome column for utility and fairness metrics.
	Target string

	// Sensitive lists protected attribute columns.
	Sensitive []string

	// Domain names the group column used for conditional generation.
	Domain string

	// TimeToEvent and Event frame the survival columns; set together or not
	// at all.
	TimeToEvent string
	Event       string

	// Temporal, when set, declares the sequence decomposition.
	Temporal *TemporalMeta
}

// TemporalMeta declares how rows group into per-entity sequences.
type TemporalMeta struct {
	ID       string
	Time     string
	Features []string
}

// Loader couples a Dataset with validated metadata. Generators fit against
// a Loader so they can honor survival structure and conditional grouping.
type Loader struct {
	Data *Dataset
	Meta Meta
}

// NewLoader binds loader config to a dataset. Every referenced column must
// exist; the survival pair and the temporal block must each be complete or
// absent.
func NewLoader(ds *Dataset, cfg config.Loader) (*Loader, error) {
	check := func(field, col string) error {
		if col == "" {
			return nil
		}
		if _, ok := ds.Column(col); !ok {
			return fmt.Errorf("loader.%s references unknown column %q", field, col)
		}
		return nil
	}

	if err := check("target", cfg.Target); err != nil {
		return nil, err
	}
	for _, s := range cfg.Sensitive {
		if err := check("sensitive", s); err != nil {
			return nil, err
		}
	}
	if err := check("domain", cfg.Domain); err != nil {
		return nil, err
	}
	if (cfg.TimeToEvent == "") != (cfg.Event == "") {
		return nil, fmt.Errorf("loader: time_to_event and event must be set together")
	}
	if err := check("time_to_event", cfg.TimeToEvent); err != nil {
		return nil, err
	}
	if err := check("event", cfg.Event); err != nil {
		return nil, err
	}

	meta := Meta{
		Target:      cfg.Target,
		Sensitive:   append([]string(nil), cfg.Sensitive...),
		Domain:      cfg.Domain,
		TimeToEvent: cfg.TimeToEvent,
		Event:       cfg.Event,
	}

	if t := cfg.Temporal; t != nil {
		if t.ID == "" || t.Time == "" || len(t.Features) == 0 {
			return nil, fmt.Errorf("loader.temporal must declare id, time, and features")
		}
		if err := check("temporal.id", t.ID); err != nil {
			return nil, err
		}
		if err := check("temporal.time", t.Time); err != nil {
			return nil, err
		}
		for _, f := range t.Features {
			if err := check("temporal.features", f); err != nil {
				return nil, err
			}
		}
		meta.Temporal = &TemporalMeta{
			ID:       t.ID,
			Time:     t.Time,
			Features: append([]string(nil), t.Features...),
		}
	}

	return &Loader{Data: ds, Meta: meta}, nil
}

// Sequence is one entity's static record plus its time-ordered observations.
type Sequence struct {
	ID           string
	Static       records.Record
	Observations []Observation
}

// Observation is one temporal row: its time value and the temporal feature
// values.
type Observation struct {
	Time   string
	Values records.Record
}

// Sequences decomposes the rows into per-entity sequences using the temporal
// metadata. The static record carries the first-seen values of every
// non-temporal column; observations are sorted by the time column
// (numerically when it parses, lexicographically otherwise). Returns an
// error when no temporal block was declared.
func (l *Loader) Sequences() ([]Sequence, error) {
	t := l.Meta.Temporal
	if t == nil {
		return nil, fmt.Errorf("dataset has no temporal block")
	}

	temporal := map[string]bool{t.Time: true}
	for _, f := range t.Features {
		temporal[f] = true
	}

	byID := map[string]*Sequence{}
	var order []string
	for _, row := range l.Data.Rows {
		id := row.String(t.ID, "")
		seq, ok := byID[id]
		if !ok {
			static := records.Record{}
			for _, c := range l.Data.Columns {
				if c.Name == t.ID || temporal[c.Name] {
					continue
				}
				static[c.Name] = row[c.Name]
			}
			seq = &Sequence{ID: id, Static: static}
			byID[id] = seq
			order = append(order, id)
		}

		obs := Observation{Time: row.String(t.Time, ""), Values: records.Record{}}
		for _, f := range t.Features {
			obs.Values[f] = row[f]
		}
		seq.Observations = append(seq.Observations, obs)
	}

	out := make([]Sequence, 0, len(order))
	for _, id := range order {
		seq := byID[id]
		sort.SliceStable(seq.Observations, func(i, j int) bool {
			return timeLess(seq.Observations[i].Time, seq.Observations[j].Time)
		})
		out = append(out, *seq)
	}
	return out, nil
}

// timeLess orders observation time values numerically when both parse and
// falls back to string order.
func timeLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}
