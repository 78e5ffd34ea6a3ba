package marginal

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
	"synthpipe/internal/generator"
	"synthpipe/pkg/records"
)

func fixtureLoader(t *testing.T, cfg config.Loader) *dataset.Loader {
	t.Helper()

	cols := []string{"sex", "age", "bmi", "site", "survival_days", "died"}
	var rows []records.Record
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 400; i++ {
		sex := "F"
		if r.Float64() < 0.4 {
			sex = "M"
		}
		site := "north"
		if r.Float64() < 0.5 {
			site = "south"
		}
		died := "0"
		days := 200 + r.Intn(400)
		if r.Float64() < 0.3 {
			died = "1"
			days = r.Intn(200)
		}
		rows = append(rows, records.Record{
			"sex":           sex,
			"age":           fmt.Sprintf("%d", 20+r.Intn(60)),
			"bmi":           fmt.Sprintf("%.1f", 17+10*r.Float64()),
			"site":          site,
			"survival_days": fmt.Sprintf("%d", days),
			"died":          died,
		})
	}
	ds, err := dataset.New(cols, rows, nil)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	l, err := dataset.NewLoader(ds, cfg)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return l
}

func TestGenerateBeforeFit(t *testing.T) {
	t.Parallel()

	g := &Marginal{}
	_, err := g.Generate(context.Background(), generator.Request{Count: 5, Rand: rand.New(rand.NewSource(1))})
	if !errors.Is(err, generator.ErrNotFitted) {
		t.Fatalf("want ErrNotFitted, got %v", err)
	}
}

func TestFitGenerateShape(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{})
	g := &Marginal{seed: 3}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := g.Generate(context.Background(), generator.Request{Count: 50, Rand: rand.New(rand.NewSource(9))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Len() != 50 {
		t.Fatalf("generated %d rows, want 50", out.Len())
	}
	if len(out.Columns) != len(l.Data.Columns) {
		t.Fatalf("schema width %d, want %d", len(out.Columns), len(l.Data.Columns))
	}

	// Values must come from the fitted domain.
	for _, r := range out.Rows {
		if v := r.String("sex", ""); v != "F" && v != "M" {
			t.Fatalf("sex sampled off-domain: %q", v)
		}
	}
}

func TestGenerateDefaultCountMatchesFit(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{})
	g := &Marginal{}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	out, err := g.Generate(context.Background(), generator.Request{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Len() != l.Data.Len() {
		t.Fatalf("default count = %d, want %d", out.Len(), l.Data.Len())
	}
}

func TestSurvivalPairsStayJoint(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{TimeToEvent: "survival_days", Event: "died"})
	g := &Marginal{}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Observed pairs from the training data.
	real := map[string]bool{}
	for _, r := range l.Data.Rows {
		real[r.String("survival_days", "")+"|"+r.String("died", "")] = true
	}

	out, err := g.Generate(context.Background(), generator.Request{Count: 200, Rand: rand.New(rand.NewSource(2))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, r := range out.Rows {
		key := r.String("survival_days", "") + "|" + r.String("died", "")
		if !real[key] {
			t.Fatalf("synthetic survival pair %q never observed in training data", key)
		}
	}
}

func TestConditionalGenerationPinsAndRestricts(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{Domain: "site"})
	g := &Marginal{}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := g.Generate(context.Background(), generator.Request{
		Count:      80,
		Conditions: map[string]string{"site": "north"},
		Rand:       rand.New(rand.NewSource(5)),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, r := range out.Rows {
		if got := r.String("site", ""); got != "north" {
			t.Fatalf("condition not pinned: site=%q", got)
		}
	}
}

func TestConditionValueUnseenAtFit(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{Domain: "site"})
	g := &Marginal{seed: 3}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	for _, conds := range []map[string]string{
		{"sex": "X"},
		{"site": "west"},
	} {
		_, err := g.Generate(context.Background(), generator.Request{
			Count:      5,
			Conditions: conds,
			Rand:       rand.New(rand.NewSource(1)),
		})
		if err == nil {
			t.Fatalf("conditions %v: want error for unseen value", conds)
		}
	}

	// Continuous columns accept any pinned value.
	out, err := g.Generate(context.Background(), generator.Request{
		Count:      5,
		Conditions: map[string]string{"bmi": "42.5"},
		Rand:       rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("continuous condition: %v", err)
	}
	if got := out.Rows[0].String("bmi", ""); got != "42.5" {
		t.Errorf("bmi = %q, want pinned 42.5", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{})
	g := &Marginal{}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	blob, err := generator.SaveBlob(g)
	if err != nil {
		t.Fatalf("SaveBlob: %v", err)
	}

	restored := &Marginal{}
	if err := generator.LoadBlob(restored, blob); err != nil {
		t.Fatalf("LoadBlob: %v", err)
	}
	out, err := restored.Generate(context.Background(), generator.Request{Count: 10, Rand: rand.New(rand.NewSource(4))})
	if err != nil {
		t.Fatalf("Generate after restore: %v", err)
	}
	if out.Len() != 10 {
		t.Fatalf("generated %d rows, want 10", out.Len())
	}
}

func TestSaveBlobBeforeFit(t *testing.T) {
	t.Parallel()

	if _, err := generator.SaveBlob(&Marginal{}); !errors.Is(err, generator.ErrNotFitted) {
		t.Fatalf("want ErrNotFitted, got %v", err)
	}
}

func TestEpsilonNoiseKeepsDomain(t *testing.T) {
	t.Parallel()

	l := fixtureLoader(t, config.Loader{})
	g := &Marginal{epsilon: 1.0, seed: 13}
	if err := g.Fit(context.Background(), l); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	out, err := g.Generate(context.Background(), generator.Request{Count: 100, Rand: rand.New(rand.NewSource(6))})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, r := range out.Rows {
		if v := r.String("sex", ""); v != "F" && v != "M" && v != "" {
			t.Fatalf("noised marginal produced off-domain value %q", v)
		}
	}
}

func TestRegistryFactory(t *testing.T) {
	t.Parallel()

	g, err := generator.New(config.Generator{Kind: Kind, Options: config.Options{"epsilon": 0.5}})
	if err != nil {
		t.Fatalf("generator.New: %v", err)
	}
	if g.Kind() != Kind {
		t.Fatalf("Kind = %q", g.Kind())
	}

	if _, err := generator.New(config.Generator{Kind: Kind, Options: config.Options{"epsilon": -1.0}}); err == nil {
		t.Fatal("expected error for negative epsilon")
	}
}
