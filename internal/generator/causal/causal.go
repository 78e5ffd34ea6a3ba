// Package causal implements the DAG-guided generator. Columns named in the
// configured DAG are sampled in topological order from conditional
// frequency tables keyed by their parents' discretized values; every other
// column, DAG roots included, falls back to its empirical marginal.
package causal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"synthpipe/internal/config"
	"synthpipe/internal/dag"
	"synthpipe/internal/dataset"
	"synthpipe/internal/generator"
	"synthpipe/internal/generator/marginal"
	"synthpipe/pkg/records"
)

// Kind is the registry name of this generator.
const Kind = "causal"

// defaultBins is the equal-width bin count for numeric parent values.
const defaultBins = 10

func init() {
	generator.Register(Kind, func(spec config.Generator) (generator.Generator, error) {
		edges := spec.Options.PairSlice("dag")
		if len(edges) == 0 {
			return nil, fmt.Errorf("causal: options.dag must list at least one edge")
		}
		bins := spec.Options.Int("bins", defaultBins)
		if bins < 2 {
			return nil, fmt.Errorf("causal: bins must be >= 2, got %d", bins)
		}
		eps := spec.Options.Float("epsilon", 0)
		if eps < 0 {
			return nil, fmt.Errorf("causal: epsilon must be >= 0, got %v", eps)
		}
		return &Causal{
			edges:    edges,
			suppress: spec.Options.PairSlice("suppress"),
			bins:     bins,
			epsilon:  eps,
			seed:     spec.Seed,
		}, nil
	})
}

// binSpec discretizes one numeric column into equal-width bins.
type binSpec struct {
	Min   float64 `json:"min"`
	Width float64 `json:"width"`
	Bins  int     `json:"bins"`
}

func (b binSpec) bucket(v float64) int {
	if b.Width <= 0 {
		return 0
	}
	i := int((v - b.Min) / b.Width)
	if i < 0 {
		i = 0
	}
	if i >= b.Bins {
		i = b.Bins - 1
	}
	return i
}

// condTable maps a discretized parent-value key to the weighted node values
// observed under it.
type condTable struct {
	ByParent map[string][]marginal.CatEntry `json:"by_parent"`
}

type state struct {
	Schema    []dataset.Column              `json:"schema"`
	Rows      int                           `json:"rows"`
	Order     []string                      `json:"order"`
	Parents   map[string][]string           `json:"parents"`
	Cond      map[string]*condTable         `json:"cond"`
	Marginals map[string]*marginal.ColModel `json:"marginals"`
	Binning   map[string]binSpec            `json:"binning"`
}

// Causal is the generator instance. Zero value is unfitted.
type Causal struct {
	edges    [][2]string
	suppress [][2]string
	bins     int
	epsilon  float64
	seed     int64
	st       *state
}

// Kind implements generator.Generator.
func (g *Causal) Kind() string { return Kind }

// Fit builds the DAG, drops suppressed edges, and learns a conditional
// frequency table for every node that still has parents. Edges referencing
// unknown columns or forming a cycle are errors.
func (g *Causal) Fit(ctx context.Context, l *dataset.Loader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds := l.Data
	if ds.Len() == 0 {
		return fmt.Errorf("causal: cannot fit on empty dataset")
	}

	edges := make([]dag.Edge, len(g.edges))
	for i, e := range g.edges {
		edges[i] = dag.Edge{From: e[0], To: e[1]}
	}
	graph, err := dag.FromEdges(edges)
	if err != nil {
		return fmt.Errorf("causal: %w", err)
	}
	for _, e := range g.suppress {
		graph.Suppress(e[0], e[1])
	}
	for _, node := range graph.Nodes() {
		if _, ok := ds.Column(node); !ok {
			return fmt.Errorf("causal: dag references unknown column %q", node)
		}
	}
	order := graph.TopoSort()

	noise := rand.New(rand.NewSource(g.seed))
	st := &state{
		Schema:    append([]dataset.Column(nil), ds.Columns...),
		Rows:      ds.Len(),
		Order:     order,
		Parents:   map[string][]string{},
		Cond:      map[string]*condTable{},
		Marginals: marginal.FitColumns(ds, g.epsilon, noise),
		Binning:   map[string]binSpec{},
	}

	// Binning specs for every numeric column a table may key on.
	for _, col := range ds.Columns {
		if col.Kind != dataset.KindInteger && col.Kind != dataset.KindContinuous {
			continue
		}
		vals := ds.Floats(col.Name)
		if len(vals) == 0 {
			continue
		}
		lo, hi := minMax(vals)
		width := (hi - lo) / float64(g.bins)
		st.Binning[col.Name] = binSpec{Min: lo, Width: width, Bins: g.bins}
	}

	for _, node := range order {
		parents := graph.Parents(node)
		if len(parents) == 0 {
			continue
		}
		sort.Strings(parents)
		st.Parents[node] = parents

		counts := map[string]map[string]float64{}
		for _, row := range ds.Rows {
			v := row.String(node, "")
			if v == "" {
				continue
			}
			key := st.parentKey(parents, row)
			if counts[key] == nil {
				counts[key] = map[string]float64{}
			}
			counts[key][v]++
		}

		table := &condTable{ByParent: map[string][]marginal.CatEntry{}}
		for key, byVal := range counts {
			vals := make([]string, 0, len(byVal))
			for v := range byVal {
				vals = append(vals, v)
			}
			sort.Strings(vals)
			entries := make([]marginal.CatEntry, 0, len(vals))
			for _, v := range vals {
				entries = append(entries, marginal.CatEntry{Value: v, Weight: byVal[v]})
			}
			table.ByParent[key] = entries
		}
		st.Cond[node] = table
	}

	g.st = st
	return nil
}

// parentKey builds the lookup key for one row's parent values. Numeric
// parents are bucketed; nulls key as an empty segment.
func (s *state) parentKey(parents []string, row records.Record) string {
	parts := make([]string, len(parents))
	for i, p := range parents {
		v := row.String(p, "")
		if v == "" {
			continue
		}
		if spec, ok := s.Binning[p]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				parts[i] = fmt.Sprintf("b%d", spec.bucket(f))
				continue
			}
		}
		parts[i] = v
	}
	return strings.Join(parts, "\x1f")
}

// Generate samples rows in topological order: DAG nodes draw from their
// conditional table given the parents already sampled this row, backing off
// to the node marginal for unseen parent configurations; remaining columns
// draw from their marginals. Conditions pin values before anything samples.
func (g *Causal) Generate(ctx context.Context, req generator.Request) (*dataset.Dataset, error) {
	if g.st == nil {
		return nil, generator.ErrNotFitted
	}
	if req.Rand == nil {
		return nil, fmt.Errorf("causal: request needs a random source")
	}
	count := req.Count
	if count <= 0 {
		count = g.st.Rows
	}
	if err := g.checkConditions(req.Conditions); err != nil {
		return nil, err
	}

	inDAG := map[string]bool{}
	for _, n := range g.st.Order {
		inDAG[n] = true
	}

	out := make([]records.Record, 0, count)
	for i := 0; i < count; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := make(records.Record, len(g.st.Schema))

		for _, node := range g.st.Order {
			if v, ok := req.Conditions[node]; ok {
				rec[node] = v
				continue
			}
			rec[node] = g.sampleNode(node, rec, req.Rand)
		}
		for _, col := range g.st.Schema {
			if inDAG[col.Name] {
				continue
			}
			if v, ok := req.Conditions[col.Name]; ok {
				rec[col.Name] = v
				continue
			}
			if m, ok := g.st.Marginals[col.Name]; ok {
				rec[col.Name] = m.Sample(req.Rand)
			} else {
				rec[col.Name] = nil
			}
		}
		out = append(out, rec)
	}

	return &dataset.Dataset{Columns: g.st.Schema, Rows: out}, nil
}

// checkConditions rejects condition values on discrete columns that never
// appeared at fit time.
func (g *Causal) checkConditions(conds map[string]string) error {
	for col, val := range conds {
		m, ok := g.st.Marginals[col]
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
			return fmt.Errorf("causal: condition %s=%q: value not seen at fit time", col, val)
		}
	}
	return nil
}

func (g *Causal) sampleNode(node string, rec records.Record, r *rand.Rand) any {
	parents := g.st.Parents[node]
	if len(parents) > 0 {
		if table, ok := g.st.Cond[node]; ok {
			key := g.st.parentKey(parents, rec)
			if entries, ok := table.ByParent[key]; ok && len(entries) > 0 {
				if v, ok := sampleEntries(r, entries); ok {
					return v
				}
			}
		}
	}
	if m, ok := g.st.Marginals[node]; ok {
		return m.Sample(r)
	}
	return nil
}

func sampleEntries(r *rand.Rand, entries []marginal.CatEntry) (string, bool) {
	total := 0.0
	for _, e := range entries {
		total += e.Weight
	}
	if total <= 0 {
		return "", false
	}
	x := r.Float64() * total
	for _, e := range entries {
		x -= e.Weight
		if x < 0 {
			return e.Value, true
		}
	}
	return entries[len(entries)-1].Value, true
}

// MarshalState implements generator.Stater.
func (g *Causal) MarshalState() ([]byte, error) {
	if g.st == nil {
		return nil, generator.ErrNotFitted
	}
	return json.Marshal(g.st)
}

// UnmarshalState implements generator.Stater.
func (g *Causal) UnmarshalState(data []byte) error {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("causal: decode state: %w", err)
	}
	if len(st.Schema) == 0 {
		return fmt.Errorf("causal: state has no schema")
	}
	g.st = &st
	return nil
}

func minMax(x []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
