package eval

import (
	"context"
	"math"
	"strings"

	"synthpipe/internal/dataset"
	"synthpipe/internal/stats"
	"synthpipe/pkg/records"
)

func init() {
	Register("privacy", privacyGroup)
}

// dcrSampleLimit caps the pairwise distance scan.
const dcrSampleLimit = 500

// privacyGroup measures leakage of real records into the synthetic set:
//
//	duplicate_share  fraction of synthetic rows identical to some real
//	                 training row
//	dcr_ratio        median distance-to-closest-record of synthetic rows
//	                 against training rows, divided by the same statistic
//	                 for the real holdout. A ratio near or above 1 means
//	                 synthetic rows sit no closer to the training data
//	                 than unseen real rows do.
func privacyGroup(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	train, synth, holdout := in.Train, in.Synth, in.Holdout
	cols := train.ColumnNames()

	seen := make(map[string]bool, train.Len())
	for _, r := range train.Rows {
		seen[rowKey(r, cols)] = true
	}
	dups := 0
	for _, r := range synth.Rows {
		if seen[rowKey(r, cols)] {
			dups++
		}
	}
	dupShare := 0.0
	if synth.Len() > 0 {
		dupShare = float64(dups) / float64(synth.Len())
	}

	scores := []Score{
		{Metric: "privacy.duplicate_share", Value: dupShare, Direction: Minimize},
	}

	norm := newRowDistance(train)
	synthDCR := stats.Median(closestDistances(ctx, norm, synth, train))
	holdDCR := stats.Median(closestDistances(ctx, norm, holdout, train))
	ratio := 0.0
	if holdDCR > 0 {
		ratio = synthDCR / holdDCR
	}
	scores = append(scores, Score{Metric: "privacy.dcr_ratio", Value: ratio, Direction: Maximize})

	return scores, nil
}

func rowKey(r records.Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = r.String(c, "\x01")
	}
	return strings.Join(parts, "\x00")
}

// rowDistance computes normalized mixed-type row distances: numeric columns
// contribute |a-b| scaled by the training range, everything else
// contributes 0/1 on mismatch.
type rowDistance struct {
	cols   []dataset.Column
	ranges map[string][2]float64
}

func newRowDistance(train *dataset.Dataset) *rowDistance {
	d := &rowDistance{cols: train.Columns, ranges: map[string][2]float64{}}
	for _, col := range train.Columns {
		if col.Kind != dataset.KindContinuous && col.Kind != dataset.KindInteger {
			continue
		}
		vals := train.Floats(col.Name)
		if len(vals) == 0 {
			continue
		}
		lo, hi := stats.MinMax(vals)
		d.ranges[col.Name] = [2]float64{lo, hi}
	}
	return d
}

func (d *rowDistance) distance(a, b records.Record) float64 {
	if len(d.cols) == 0 {
		return 0
	}
	sum := 0.0
	for _, col := range d.cols {
		if rng, ok := d.ranges[col.Name]; ok {
			span := rng[1] - rng[0]
			av := a.Float(col.Name, math.NaN())
			bv := b.Float(col.Name, math.NaN())
			switch {
			case math.IsNaN(av) && math.IsNaN(bv):
				// both null, no contribution
			case math.IsNaN(av) || math.IsNaN(bv):
				sum++
			case span > 0:
				gap := math.Abs(av-bv) / span
				if gap > 1 {
					gap = 1
				}
				sum += gap
			}
			continue
		}
		if a.String(col.Name, "") != b.String(col.Name, "") {
			sum++
		}
	}
	return sum / float64(len(d.cols))
}

// closestDistances returns, for up to dcrSampleLimit rows of from, the
// distance to the nearest row of to (also capped).
func closestDistances(ctx context.Context, d *rowDistance, from, to *dataset.Dataset) []float64 {
	fromRows := capRows(from.Rows, dcrSampleLimit)
	toRows := capRows(to.Rows, dcrSampleLimit)

	out := make([]float64, 0, len(fromRows))
	for i, fr := range fromRows {
		if i%64 == 0 && ctx.Err() != nil {
			return out
		}
		best := math.Inf(1)
		for _, tr := range toRows {
			if dist := d.distance(fr, tr); dist < best {
				best = dist
			}
		}
		if !math.IsInf(best, 1) {
			out = append(out, best)
		}
	}
	return out
}

func capRows(rows []records.Record, limit int) []records.Record {
	if len(rows) <= limit {
		return rows
	}
	// Deterministic stride sample keeps the scan bounded without a seed.
	stride := len(rows) / limit
	out := make([]records.Record, 0, limit)
	for i := 0; i < len(rows) && len(out) < limit; i += stride {
		out = append(out, rows[i])
	}
	return out
}
