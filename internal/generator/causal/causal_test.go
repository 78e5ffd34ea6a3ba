package causal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
	"synthpipe/internal/generator"
	"synthpipe/pkg/records"
)

// biasedLoader builds a dataset where treatment depends strongly on sex,
// and outcome depends strongly on treatment.
func biasedLoader(t *testing.T) *dataset.Loader {
	t.Helper()

	cols := []string{"sex", "treatment", "outcome", "age"}
	r := rand.New(rand.NewSource(21))
	var rows []records.Record
	for i := 0; i < 600; i++ {
		sex := "F"
		if r.Float64() < 0.5 {
			sex = "M"
		}
		treatment := "placebo"
		if (sex == "F" && r.Float64() < 0.9) || (sex == "M" && r.Float64() < 0.1) {
			treatment = "drug"
		}
		outcome := "0"
		if (treatment == "drug" && r.Float64() < 0.8) || (treatment == "placebo" && r.Float64() < 0.2) {
			outcome = "1"
		}
		rows = append(rows, records.Record{
			"sex":       sex,
			"treatment": treatment,
			"outcome":   outcome,
			"age":       fmt.Sprintf("%d", 20+r.Intn(50)),
		})
	}
	ds, err := dataset.New(cols, rows, nil)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	l, err := dataset.NewLoader(ds, config.Loader{Target: "outcome", Sensitive: []string{"sex"}})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return l
}

func newCausal(t *testing.T, opts config.Options) *Causal {
	t.Helper()
	g, err := generator.New(config.Generator{Kind: Kind, Seed: 1, Options: opts})
	if err != nil {
		t.Fatalf("generator.New: %v", err)
	}
	return g.(*Causal)
}

func dagOpts(extra config.Options) config.Options {
	opts := config.Options{
		"dag": []any{
			[]any{"sex", "treatment"},
			[]any{"treatment", "outcome"},
		},
	}
	for k, v := range extra {
		opts[k] = v
	}
	return opts
}

// conditionalRate returns P(child=childVal | parent=parentVal).
func conditionalRate(ds *dataset.Dataset, parent, parentVal, child, childVal string) float64 {
	n, hits := 0, 0
	for _, r := range ds.Rows {
		if r.String(parent, "") != parentVal {
			continue
		}
		n++
		if r.String(child, "") == childVal {
			hits++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(hits) / float64(n)
}

func TestGenerateBeforeFit(t *testing.T) {
	t.Parallel()

	g := newCausal(t, dagOpts(nil))
	_, err := g.Generate(context.Background(), generator.Request{Count: 1, Rand: rand.New(rand.NewSource(1))})
	if !errors.Is(err, generator.ErrNotFitted) {
		t.Fatalf("want ErrNotFitted, got %v", err)
	}
}

func TestFitPreservesConditionalStructure(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, dagOpts(nil))
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := g.Generate(context.Background(), generator.Request{Count: 600, Rand: rand.New(rand.NewSource(3))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	realRate := conditionalRate(l.Data, "sex", "F", "treatment", "drug")
	synthRate := conditionalRate(out, "sex", "F", "treatment", "drug")
	if math.Abs(realRate-synthRate) > 0.15 {
		t.Fatalf("P(drug|F): real=%.2f synth=%.2f, dependency lost", realRate, synthRate)
	}
}

func TestSuppressedEdgeBreaksDependency(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, dagOpts(config.Options{
		"suppress": []any{[]any{"sex", "treatment"}},
	}))
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := g.Generate(context.Background(), generator.Request{Count: 600, Rand: rand.New(rand.NewSource(3))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// With the sex -> treatment edge removed, treatment rates should be
	// close across sexes.
	fRate := conditionalRate(out, "sex", "F", "treatment", "drug")
	mRate := conditionalRate(out, "sex", "M", "treatment", "drug")
	if math.Abs(fRate-mRate) > 0.15 {
		t.Fatalf("suppressed edge still biases: P(drug|F)=%.2f P(drug|M)=%.2f", fRate, mRate)
	}
}

func TestCyclicDagRejected(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, config.Options{
		"dag": []any{
			[]any{"sex", "treatment"},
			[]any{"treatment", "sex"},
		},
	})
	if err := g.Fit(context.Background(), l); err == nil {
		t.Fatal("expected error for cyclic dag")
	}
}

func TestUnknownColumnRejected(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, config.Options{
		"dag": []any{[]any{"sex", "nonexistent"}},
	})
	if err := g.Fit(context.Background(), l); err == nil {
		t.Fatal("expected error for unknown dag column")
	}
}

func TestConditionsPinValues(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, dagOpts(nil))
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := g.Generate(context.Background(), generator.Request{
		Count:      100,
		Conditions: map[string]string{"sex": "M"},
		Rand:       rand.New(rand.NewSource(8)),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, r := range out.Rows {
		if got := r.String("sex", ""); got != "M" {
			t.Fatalf("condition not pinned: sex=%q", got)
		}
	}

	// Downstream of the pinned value the conditional tables still apply:
	// drug share under M should stay low like the training data.
	if rate := conditionalRate(out, "sex", "M", "treatment", "drug"); rate > 0.35 {
		t.Fatalf("P(drug|M)=%.2f, expected low rate from conditional table", rate)
	}
}

func TestConditionValueUnseenAtFit(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, dagOpts(nil))
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	_, err := g.Generate(context.Background(), generator.Request{
		Count:      5,
		Conditions: map[string]string{"treatment": "homeopathy"},
		Rand:       rand.New(rand.NewSource(1)),
	})
	if err == nil {
		t.Fatal("want error for unseen condition value")
	}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	l := biasedLoader(t)
	g := newCausal(t, dagOpts(nil))
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	blob, err := generator.SaveBlob(g)
	if err != nil {
		t.Fatalf("SaveBlob: %v", err)
	}

	restored := newCausal(t, dagOpts(nil))
	if err := generator.LoadBlob(restored, blob); err != nil {
		t.Fatalf("LoadBlob: %v", err)
	}
	out, err := restored.Generate(context.Background(), generator.Request{Count: 20, Rand: rand.New(rand.NewSource(4))})
	if err != nil {
		t.Fatalf("Generate after restore: %v", err)
	}
	if out.Len() != 20 {
		t.Fatalf("generated %d rows, want 20", out.Len())
	}
}

func TestFactoryValidation(t *testing.T) {
	t.Parallel()

	if _, err := generator.New(config.Generator{Kind: Kind}); err == nil {
		t.Fatal("expected error for missing dag")
	}
	if _, err := generator.New(config.Generator{Kind: Kind, Options: dagOpts(config.Options{"bins": 1.0})}); err == nil {
		t.Fatal("expected error for bins < 2")
	}
}
