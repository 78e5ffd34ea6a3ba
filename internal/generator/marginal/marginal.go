// Package marginal implements the baseline generator: independent
// per-column empirical marginals. Categorical, integer, and datetime
// columns resample observed values by frequency; continuous columns sample
// from a quantile-interpolated empirical distribution. Survival columns are
// resampled jointly so censoring structure survives, and fitting optionally
// runs per domain group to support conditional generation.
package marginal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
	"synthpipe/internal/generator"
	"synthpipe/internal/stats"
	"synthpipe/pkg/records"
)

// Kind is the registry name of this generator.
const Kind = "marginal"

func init() {
	generator.Register(Kind, func(spec config.Generator) (generator.Generator, error) {
		eps := spec.Options.Float("epsilon", 0)
		if eps < 0 {
			return nil, fmt.Errorf("marginal: epsilon must be >= 0, got %v", eps)
		}
		return &Marginal{epsilon: eps, seed: spec.Seed}, nil
	})
}

// quantileGridSize is the resolution of the stored continuous marginals.
const quantileGridSize = 101

// CatEntry is one weighted category value.
type CatEntry struct {
	Value  string  `json:"v"`
	Weight float64 `json:"w"`
}

// ColModel is the fitted marginal of one column.
type ColModel struct {
	Kind      dataset.Kind `json:"kind"`
	NullShare float64      `json:"null_share"`

	// Cat holds the weighted values for categorical, integer, and datetime
	// columns.
	Cat []CatEntry `json:"cat,omitempty"`

	// Quantiles is the sorted quantile grid for continuous columns.
	Quantiles []float64 `json:"quantiles,omitempty"`
}

// Sample draws one value from the marginal, or nil for a null.
func (m *ColModel) Sample(r *rand.Rand) any {
	if m.NullShare > 0 && r.Float64() < m.NullShare {
		return nil
	}
	if m.Kind == dataset.KindContinuous {
		if len(m.Quantiles) == 0 {
			return nil
		}
		return fmt.Sprintf("%g", stats.InterpQuantile(m.Quantiles, r.Float64()))
	}
	total := 0.0
	for _, e := range m.Cat {
		total += e.Weight
	}
	if total <= 0 {
		return nil
	}
	x := r.Float64() * total
	for _, e := range m.Cat {
		x -= e.Weight
		if x < 0 {
			return e.Value
		}
	}
	return m.Cat[len(m.Cat)-1].Value
}

// state is the serializable fitted model.
type state struct {
	Schema    []dataset.Column                `json:"schema"`
	Rows      int                             `json:"rows"`
	Global    map[string]*ColModel            `json:"global"`
	DomainCol string                          `json:"domain_col,omitempty"`
	Groups    map[string]map[string]*ColModel `json:"groups,omitempty"`

	// Survival holds observed (time_to_event, event) pairs resampled
	// jointly.
	TTECol   string      `json:"tte_col,omitempty"`
	EventCol string      `json:"event_col,omitempty"`
	Survival [][2]string `json:"survival,omitempty"`
}

// Marginal is the generator instance. Zero value is unfitted.
type Marginal struct {
	epsilon float64
	seed    int64
	st      *state
}

// Kind implements generator.Generator.
func (g *Marginal) Kind() string { return Kind }

// Fit learns per-column marginals from the loader's dataset. When the
// loader declares a domain column, group-specific marginals are fitted per
// domain value as well.
func (g *Marginal) Fit(ctx context.Context, l *dataset.Loader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds := l.Data
	if ds.Len() == 0 {
		return fmt.Errorf("marginal: cannot fit on empty dataset")
	}

	noise := rand.New(rand.NewSource(g.seed))
	st := &state{
		Schema: append([]dataset.Column(nil), ds.Columns...),
		Rows:   ds.Len(),
		Global: FitColumns(ds, g.epsilon, noise),
	}

	if dom := l.Meta.Domain; dom != "" {
		st.DomainCol = dom
		st.Groups = map[string]map[string]*ColModel{}
		for _, v := range groupValues(ds, dom) {
			sub := ds.WithRows(filterRows(ds.Rows, dom, v))
			st.Groups[v] = FitColumns(sub, g.epsilon, noise)
		}
	}

	if tte, ev := l.Meta.TimeToEvent, l.Meta.Event; tte != "" && ev != "" {
		st.TTECol, st.EventCol = tte, ev
		for _, r := range ds.Rows {
			t, e := r.String(tte, ""), r.String(ev, "")
			if t == "" || e == "" {
				continue
			}
			st.Survival = append(st.Survival, [2]string{t, e})
		}
	}

	g.st = st
	return nil
}

// Generate samples req.Count rows (or as many as the fitted dataset when
// req.Count <= 0). A condition on the domain column switches to that
// group's marginals; conditions always pin their column's value.
func (g *Marginal) Generate(ctx context.Context, req generator.Request) (*dataset.Dataset, error) {
	if g.st == nil {
		return nil, generator.ErrNotFitted
	}
	if req.Rand == nil {
		return nil, fmt.Errorf("marginal: request needs a random source")
	}
	count := req.Count
	if count <= 0 {
		count = g.st.Rows
	}
	if err := g.checkConditions(req.Conditions); err != nil {
		return nil, err
	}

	models := g.st.Global
	if g.st.DomainCol != "" {
		if v, ok := req.Conditions[g.st.DomainCol]; ok {
			if grp, ok := g.st.Groups[v]; ok {
				models = grp
			}
		}
	}

	out := make([]records.Record, 0, count)
	for i := 0; i < count; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := make(records.Record, len(g.st.Schema))
		for _, col := range g.st.Schema {
			if v, ok := req.Conditions[col.Name]; ok {
				rec[col.Name] = v
				continue
			}
			if m, ok := models[col.Name]; ok {
				rec[col.Name] = m.Sample(req.Rand)
			} else {
				rec[col.Name] = nil
			}
		}
		if len(g.st.Survival) > 0 {
			pair := g.st.Survival[req.Rand.Intn(len(g.st.Survival))]
			if _, ok := req.Conditions[g.st.TTECol]; !ok {
				rec[g.st.TTECol] = pair[0]
			}
			if _, ok := req.Conditions[g.st.EventCol]; !ok {
				rec[g.st.EventCol] = pair[1]
			}
		}
		out = append(out, rec)
	}

	return &dataset.Dataset{Columns: g.st.Schema, Rows: out}, nil
}

// checkConditions rejects condition values on discrete columns that never
// appeared at fit time; resampling cannot produce consistent rows for them.
func (g *Marginal) checkConditions(conds map[string]string) error {
	for col, val := range conds {
		if g.st.DomainCol == col {
			if _, ok := g.st.Groups[val]; !ok {
				return fmt.Errorf("marginal: condition %s=%q: value not seen at fit time", col, val)
			}
			continue
		}
		m, ok := g.st.Global[col]
		if !ok || m.Kind == dataset.KindContinuous {
			continue
		}
		found := false
		for _, e := range m.Cat {
			if e.Value == val {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("marginal: condition %s=%q: value not seen at fit time", col, val)
		}
	}
	return nil
}

// MarshalState implements generator.Stater.
func (g *Marginal) MarshalState() ([]byte, error) {
	if g.st == nil {
		return nil, generator.ErrNotFitted
	}
	return json.Marshal(g.st)
}

// UnmarshalState implements generator.Stater.
func (g *Marginal) UnmarshalState(data []byte) error {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("marginal: decode state: %w", err)
	}
	if len(st.Schema) == 0 {
		return fmt.Errorf("marginal: state has no schema")
	}
	g.st = &st
	return nil
}

// FitColumns fits one ColModel per dataset column. epsilon > 0 adds
// Laplace(1/epsilon) noise to category weights; noise draws come from the
// provided source so fits stay reproducible.
func FitColumns(ds *dataset.Dataset, epsilon float64, noise *rand.Rand) map[string]*ColModel {
	out := make(map[string]*ColModel, len(ds.Columns))
	for _, col := range ds.Columns {
		out[col.Name] = fitColumn(ds, col, epsilon, noise)
	}
	return out
}

func fitColumn(ds *dataset.Dataset, col dataset.Column, epsilon float64, noise *rand.Rand) *ColModel {
	m := &ColModel{Kind: col.Kind}
	n := ds.Len()
	if n == 0 {
		return m
	}

	if col.Kind == dataset.KindContinuous {
		vals := ds.Floats(col.Name)
		m.NullShare = 1 - float64(len(vals))/float64(n)
		if len(vals) > 0 {
			qs := make([]float64, quantileGridSize)
			for i := range qs {
				qs[i] = float64(i) / float64(quantileGridSize-1)
			}
			m.Quantiles = stats.Quantiles(vals, qs)
		}
		return m
	}

	counts := map[string]float64{}
	var order []string
	seen := 0
	for _, r := range ds.Rows {
		v := r.String(col.Name, "")
		if v == "" {
			continue
		}
		seen++
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	m.NullShare = 1 - float64(seen)/float64(n)
	sort.Strings(order)
	for _, v := range order {
		w := counts[v]
		if epsilon > 0 {
			w += laplace(noise, 1/epsilon)
			if w < 0 {
				w = 0
			}
		}
		if w > 0 {
			m.Cat = append(m.Cat, CatEntry{Value: v, Weight: w})
		}
	}
	// Noise can wipe every category on tiny tables; keep the raw counts
	// rather than losing the column.
	if epsilon > 0 && len(m.Cat) == 0 {
		for _, v := range order {
			m.Cat = append(m.Cat, CatEntry{Value: v, Weight: counts[v]})
		}
	}
	return m
}

// laplace draws from Laplace(0, scale).
func laplace(r *rand.Rand, scale float64) float64 {
	u := r.Float64() - 0.5
	if u == 0 {
		return 0
	}
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}

func groupValues(ds *dataset.Dataset, col string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range ds.Rows {
		v := r.String(col, "")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func filterRows(rows []records.Record, col, val string) []records.Record {
	var out []records.Record
	for _, r := range rows {
		if r.String(col, "") == val {
			out = append(out, r)
		}
	}
	return out
}
