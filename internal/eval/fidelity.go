package eval

import (
	"context"
	"math"
	"sort"

	"synthpipe/internal/dataset"
	"synthpipe/internal/stats"
)

func init() {
	Register("fidelity", fidelityGroup)
}

// fidelityGroup measures how well synthetic marginals and pairwise
// structure match the real data:
//
//	ks_mean    mean two-sample Kolmogorov-Smirnov statistic over
//	           continuous and integer columns
//	js_mean    mean Jensen-Shannon divergence over categorical columns
//	corr_delta mean absolute difference of pairwise Pearson correlations
//	           over numeric column pairs
func fidelityGroup(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	real, synth := in.Train, in.Synth

	var ksVals, jsVals []float64
	for _, col := range real.Columns {
		switch col.Kind {
		case dataset.KindContinuous, dataset.KindInteger:
			a, b := real.Floats(col.Name), synth.Floats(col.Name)
			if len(a) > 0 && len(b) > 0 {
				ksVals = append(ksVals, ksStatistic(a, b))
			}
		case dataset.KindCategorical, dataset.KindDatetime:
			jsVals = append(jsVals, jsDivergence(real.Strings(col.Name), synth.Strings(col.Name)))
		}
	}

	scores := []Score{
		{Metric: "fidelity.ks_mean", Value: stats.Mean(ksVals), Direction: Minimize},
		{Metric: "fidelity.js_mean", Value: stats.Mean(jsVals), Direction: Minimize},
		{Metric: "fidelity.corr_delta", Value: corrDelta(real, synth), Direction: Minimize},
	}
	return scores, nil
}

// ksStatistic is the two-sample Kolmogorov-Smirnov statistic: the maximum
// gap between the two empirical CDFs.
func ksStatistic(a, b []float64) float64 {
	as := append([]float64(nil), a...)
	bs := append([]float64(nil), b...)
	sort.Float64s(as)
	sort.Float64s(bs)

	var d float64
	i, j := 0, 0
	for i < len(as) && j < len(bs) {
		if as[i] <= bs[j] {
			i++
		} else {
			j++
		}
		gap := math.Abs(float64(i)/float64(len(as)) - float64(j)/float64(len(bs)))
		if gap > d {
			d = gap
		}
	}
	return d
}

// jsDivergence is the Jensen-Shannon divergence (base-2 logs, so the value
// lies in [0, 1]) between the value distributions of two samples.
func jsDivergence(a, b []string) float64 {
	pa, pb := distribution(a), distribution(b)

	keys := map[string]bool{}
	for k := range pa {
		keys[k] = true
	}
	for k := range pb {
		keys[k] = true
	}

	var js float64
	for k := range keys {
		p, q := pa[k], pb[k]
		m := (p + q) / 2
		if p > 0 {
			js += 0.5 * p * math.Log2(p/m)
		}
		if q > 0 {
			js += 0.5 * q * math.Log2(q/m)
		}
	}
	return js
}

func distribution(vals []string) map[string]float64 {
	out := map[string]float64{}
	if len(vals) == 0 {
		return out
	}
	for _, v := range vals {
		out[v]++
	}
	for k := range out {
		out[k] /= float64(len(vals))
	}
	return out
}

// corrDelta averages |corr_real - corr_synth| over all numeric column
// pairs. Pairs without enough aligned values on either side are skipped.
func corrDelta(real, synth *dataset.Dataset) float64 {
	var numeric []string
	for _, col := range real.Columns {
		if col.Kind == dataset.KindContinuous || col.Kind == dataset.KindInteger {
			numeric = append(numeric, col.Name)
		}
	}

	var deltas []float64
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			ra, rb := pairedFloats(real, numeric[i], numeric[j])
			sa, sb := pairedFloats(synth, numeric[i], numeric[j])
			if len(ra) < 2 || len(sa) < 2 {
				continue
			}
			deltas = append(deltas, math.Abs(stats.Correlation(ra, rb)-stats.Correlation(sa, sb)))
		}
	}
	return stats.Mean(deltas)
}

// pairedFloats returns the row-aligned numeric values of two columns,
// keeping only rows where both parse.
func pairedFloats(ds *dataset.Dataset, a, b string) ([]float64, []float64) {
	var xs, ys []float64
	for _, row := range ds.Rows {
		if row.IsNull(a) || row.IsNull(b) {
			continue
		}
		x := row.Float(a, math.NaN())
		y := row.Float(b, math.NaN())
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}
