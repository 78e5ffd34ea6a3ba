package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMeanStdMedian(t *testing.T) {
	t.Parallel()

	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(x); !almostEqual(got, 5) {
		t.Fatalf("Mean = %v, want 5", got)
	}
	if got := Std(x); !almostEqual(got, 2) {
		t.Fatalf("Std = %v, want 2", got)
	}
	if got := Median(x); !almostEqual(got, 4.5) {
		t.Fatalf("Median = %v, want 4.5", got)
	}
}

func TestEmptyInputsAreZero(t *testing.T) {
	t.Parallel()

	if got := Mean(nil); got != 0 {
		t.Fatalf("Mean(nil) = %v, want 0", got)
	}
	if got := Std(nil); got != 0 {
		t.Fatalf("Std(nil) = %v, want 0", got)
	}
	lo, hi := MinMax(nil)
	if lo != 0 || hi != 0 {
		t.Fatalf("MinMax(nil) = %v,%v, want 0,0", lo, hi)
	}
}

func TestQuantilesInterpolate(t *testing.T) {
	t.Parallel()

	x := []float64{0, 10, 20, 30, 40}
	got := Quantiles(x, []float64{0, 0.25, 0.5, 0.75, 1})
	want := []float64{0, 10, 20, 30, 40}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("Quantiles[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Between-point interpolation.
	if got := Quantiles(x, []float64{0.1})[0]; !almostEqual(got, 4) {
		t.Fatalf("Quantiles(0.1) = %v, want 4", got)
	}
}

func TestCorrelation(t *testing.T) {
	t.Parallel()

	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	if got := Correlation(x, y); !almostEqual(got, 1) {
		t.Fatalf("Correlation = %v, want 1", got)
	}

	yNeg := []float64{10, 8, 6, 4, 2}
	if got := Correlation(x, yNeg); !almostEqual(got, -1) {
		t.Fatalf("Correlation = %v, want -1", got)
	}

	flat := []float64{3, 3, 3, 3, 3}
	if got := Correlation(x, flat); got != 0 {
		t.Fatalf("Correlation with constant = %v, want 0", got)
	}
}
