package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("Mean(nil) = %v, want 0", got)
	}
	if got := Mean([]float64{2, 4, 6}); !almostEqual(got, 4) {
		t.Fatalf("Mean = %v, want 4", got)
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev(nil); got != 0 {
		t.Fatalf("StdDev(nil) = %v, want 0", got)
	}
	if got := StdDev([]float64{5, 5, 5}); !almostEqual(got, 0) {
		t.Fatalf("StdDev of constants = %v, want 0", got)
	}
	// population stddev of {2,4,4,4,5,5,7,9} is exactly 2
	if got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(got, 2) {
		t.Fatalf("StdDev = %v, want 2", got)
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{1}); got != 0 {
		t.Fatalf("Slope of a single point = %v, want 0", got)
	}
	if got := Slope([]float64{1, 3, 5, 7}); !almostEqual(got, 2) {
		t.Fatalf("Slope of a line = %v, want 2", got)
	}
	if got := Slope([]float64{3, 3, 3}); !almostEqual(got, 0) {
		t.Fatalf("Slope of a flat series = %v, want 0", got)
	}
	if got := Slope([]float64{10, 8, 6}); !almostEqual(got, -2) {
		t.Fatalf("Slope of a falling line = %v, want -2", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		if got := Clamp01(c.in); !almostEqual(got, c.want) {
			t.Fatalf("Clamp01(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
