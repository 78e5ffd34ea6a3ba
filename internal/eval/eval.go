// Package eval scores synthetic data against the real data it was modeled
// on. Metric groups register by name; a run selects groups in config and
// receives an ordered list of scores, each tagged with its optimization
// direction. Scores are display-only: nothing downstream branches on them.
package eval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"synthpipe/internal/dataset"
)

// Direction tells a reader which way a metric improves.
type Direction string

const (
	Minimize Direction = "minimize"
	Maximize Direction = "maximize"
)

// Score is one named metric value.
type Score struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
}

// Result is the ordered score list for one run.
type Result struct {
	Scores []Score `json:"scores"`
}

// Input carries everything a metric group may need. Train and Holdout
// partition the real data; Synth is the generated dataset sharing the same
// schema.
type Input struct {
	Train   *dataset.Dataset
	Holdout *dataset.Dataset
	Synth   *dataset.Dataset
	Meta    dataset.Meta
	Seed    int64
}

// GroupFunc computes one metric group's scores.
type GroupFunc func(ctx context.Context, in Input) ([]Score, error)

var (
	mu     sync.RWMutex
	groups = map[string]GroupFunc{}
)

// Register installs a metric group under name.
func Register(name string, fn GroupFunc) {
	mu.Lock()
	defer mu.Unlock()
	groups[name] = fn
}

// ListGroups returns the registered group names, sorted.
func ListGroups() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(groups))
	for name := range groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run computes the selected groups in the order given and concatenates
// their scores. An unknown group name is an error; a group error aborts the
// evaluation.
func Run(ctx context.Context, selected []string, in Input) (Result, error) {
	var res Result
	for _, name := range selected {
		mu.RLock()
		fn, ok := groups[name]
		mu.RUnlock()
		if !ok {
			return Result{}, fmt.Errorf("unsupported metric group %q", name)
		}
		scores, err := fn(ctx, in)
		if err != nil {
			return Result{}, fmt.Errorf("metric group %s: %w", name, err)
		}
		res.Scores = append(res.Scores, scores...)
	}
	return res, nil
}
