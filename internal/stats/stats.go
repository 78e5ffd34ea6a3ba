// Package stats provides the small set of float64 slice statistics shared by
// the generators and evaluators. All functions treat an empty slice as zero
// rather than panicking.
package stats

import (
	"math"
	"sort"
)

// Mean computes the average of a slice.
func Mean(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(n)
}

// Variance computes the population variance of a slice in a single pass.
func Variance(x []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	sum, sumSq := 0.0, 0.0
	for _, v := range x {
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	return (sumSq / n) - (mean * mean)
}

// Std computes the standard deviation of a slice.
func Std(x []float64) float64 {
	v := Variance(x)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// MinMax returns the minimum and maximum values in the slice.
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	min, max := x[0], x[0]
	for i := 1; i < len(x); i++ {
		if x[i] < min {
			min = x[i]
		} else if x[i] > max {
			max = x[i]
		}
	}
	return min, max
}

// Median returns the median value of the slice (allocates a copy).
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	mid := n >> 1
	if n&1 == 0 {
		return (cp[mid-1] + cp[mid]) * 0.5
	}
	return cp[mid]
}

// Quantiles returns the values at the q requested quantile points (each in
// [0,1]) using linear interpolation over the sorted copy of x.
func Quantiles(x []float64, qs []float64) []float64 {
	out := make([]float64, len(qs))
	n := len(x)
	if n == 0 {
		return out
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	for i, q := range qs {
		out[i] = interpSorted(cp, q)
	}
	return out
}

// InterpQuantile returns the value at quantile q over already-sorted data.
// q outside [0,1] is clamped.
func InterpQuantile(sorted []float64, q float64) float64 {
	return interpSorted(sorted, q)
}

func interpSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Normalize returns x z-normalized against the provided mean and std. A zero
// std leaves values centered only.
func Normalize(x []float64, mean, std float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if std > 0 {
			out[i] = (v - mean) / std
		} else {
			out[i] = v - mean
		}
	}
	return out
}

// Correlation computes the Pearson correlation coefficient of two equal-length
// slices, or 0 when either side is degenerate.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}
