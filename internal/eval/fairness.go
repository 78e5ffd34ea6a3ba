package eval

import (
	"context"
	"fmt"
	"sort"

	"synthpipe/internal/classifier"
	"synthpipe/internal/dataset"
	"synthpipe/internal/stats"
)

func init() {
	Register("fairness", fairnessGroup)
}

// fairnessGroup audits a classifier trained on the synthetic data against
// the real holdout, using the first sensitive column:
//
//	ftu                 fairness through unawareness: median over
//	                    sensitive-value pairs of the positive-rate gap
//	                    when the sensitive column is substituted
//	                    wholesale across the holdout
//	demographic_parity  mean over pairs of the positive-rate gap between
//	                    the actual subgroups of the holdout
func fairnessGroup(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := in.Meta.Target
	if target == "" {
		return nil, fmt.Errorf("fairness metrics need loader.target")
	}
	if len(in.Meta.Sensitive) == 0 {
		return nil, fmt.Errorf("fairness metrics need loader.sensitive")
	}
	sensitive := in.Meta.Sensitive[0]

	model, err := classifier.Train(in.Synth, target, classifier.Options{Seed: in.Seed})
	if err != nil {
		return nil, fmt.Errorf("train on synthetic: %w", err)
	}

	values := distinctValues(in.Holdout, sensitive)
	if len(values) < 2 {
		return nil, fmt.Errorf("fairness metrics need at least 2 values in %q, got %d", sensitive, len(values))
	}

	var ftuGaps, dpGaps []float64
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a, b := values[i], values[j]

			rateA := substitutedPositiveRate(model, in.Holdout, sensitive, a)
			rateB := substitutedPositiveRate(model, in.Holdout, sensitive, b)
			ftuGaps = append(ftuGaps, abs(rateA-rateB))

			subA := subgroupPositiveRate(model, in.Holdout, sensitive, a)
			subB := subgroupPositiveRate(model, in.Holdout, sensitive, b)
			dpGaps = append(dpGaps, abs(subA-subB))
		}
	}

	return []Score{
		{Metric: "fairness.ftu", Value: stats.Median(ftuGaps), Direction: Minimize},
		{Metric: "fairness.demographic_parity", Value: stats.Mean(dpGaps), Direction: Minimize},
	}, nil
}

// substitutedPositiveRate forces the sensitive column to val on every
// holdout row and measures the positive prediction rate.
func substitutedPositiveRate(m *classifier.Model, ds *dataset.Dataset, col, val string) float64 {
	if ds.Len() == 0 {
		return 0
	}
	pos := 0
	for _, row := range ds.Rows {
		sub := row.Clone()
		sub[col] = val
		if m.Predict(sub) == m.Positive {
			pos++
		}
	}
	return float64(pos) / float64(ds.Len())
}

// subgroupPositiveRate measures the positive prediction rate among holdout
// rows whose sensitive column actually equals val.
func subgroupPositiveRate(m *classifier.Model, ds *dataset.Dataset, col, val string) float64 {
	n, pos := 0, 0
	for _, row := range ds.Rows {
		if row.String(col, "") != val {
			continue
		}
		n++
		if m.Predict(row) == m.Positive {
			pos++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(pos) / float64(n)
}

func distinctValues(ds *dataset.Dataset, col string) []string {
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

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
