package dataset

import (
	"testing"

	"synthpipe/internal/config"
)

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	cols := []string{"patient", "visit", "hr", "sex", "survival_days", "died"}
	rows := rowsFrom(cols, [][]string{
		{"p1", "2", "82", "F", "340", "0"},
		{"p1", "1", "75", "F", "340", "0"},
		{"p2", "1", "90", "M", "120", "1"},
		{"p2", "3", "99", "M", "120", "1"},
		{"p2", "2", "95", "M", "120", "1"},
	})
	ds, err := New(cols, rows, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ds
}

func TestNewLoaderValidatesColumns(t *testing.T) {
	t.Parallel()

	ds := sampleDataset(t)

	cases := []struct {
		name string
		cfg  config.Loader
		ok   bool
	}{
		{"valid", config.Loader{Target: "died", Sensitive: []string{"sex"}}, true},
		{"unknown target", config.Loader{Target: "income"}, false},
		{"unknown sensitive", config.Loader{Sensitive: []string{"race"}}, false},
		{"survival pair split", config.Loader{TimeToEvent: "survival_days"}, false},
		{"survival pair complete", config.Loader{TimeToEvent: "survival_days", Event: "died"}, true},
		{"temporal incomplete", config.Loader{Temporal: &config.Temporal{ID: "patient"}}, false},
		{"temporal complete", config.Loader{Temporal: &config.Temporal{
			ID: "patient", Time: "visit", Features: []string{"hr"},
		}}, true},
		{"temporal unknown feature", config.Loader{Temporal: &config.Temporal{
			ID: "patient", Time: "visit", Features: []string{"bp"},
		}}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewLoader(ds, tc.cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSequencesDecomposition(t *testing.T) {
	t.Parallel()

	ds := sampleDataset(t)
	l, err := NewLoader(ds, config.Loader{
		Target: "died",
		Temporal: &config.Temporal{
			ID: "patient", Time: "visit", Features: []string{"hr"},
		},
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	seqs, err := l.Sequences()
	if err != nil {
		t.Fatalf("Sequences: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("got %d sequences, want 2", len(seqs))
	}

	p1 := seqs[0]
	if p1.ID != "p1" {
		t.Fatalf("first sequence id = %q, want p1 (first-seen order)", p1.ID)
	}
	if got := p1.Static.String("sex", ""); got != "F" {
		t.Fatalf("p1 static sex = %q", got)
	}
	if _, ok := p1.Static["hr"]; ok {
		t.Fatal("temporal feature leaked into static record")
	}
	if len(p1.Observations) != 2 || p1.Observations[0].Time != "1" || p1.Observations[1].Time != "2" {
		t.Fatalf("p1 observations out of order: %+v", p1.Observations)
	}

	p2 := seqs[1]
	if len(p2.Observations) != 3 {
		t.Fatalf("p2 has %d observations, want 3", len(p2.Observations))
	}
	if got := p2.Observations[2].Values.String("hr", ""); got != "99" {
		t.Fatalf("p2 last hr = %q, want 99", got)
	}
}

func TestSequencesWithoutTemporalBlock(t *testing.T) {
	t.Parallel()

	ds := sampleDataset(t)
	l, err := NewLoader(ds, config.Loader{})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if _, err := l.Sequences(); err == nil {
		t.Fatal("expected error without temporal block")
	}
}
