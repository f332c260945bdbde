package calculator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Round4 rounds half-to-even at four decimals. NaN passes through.
func Round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.RoundToEven(v*1e4) / 1e4
}

// RoundAll applies Round4 in place and returns s.
func RoundAll(s []float64) []float64 {
	for i, v := range s {
		s[i] = Round4(v)
	}
	return s
}

// PctChange returns values[i]/values[i-1] - 1. The first position is NaN.
func PctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

// RollingStd returns the trailing sample standard deviation over up to window
// values. A sample std needs two observations, so positions with fewer than
// max(minPeriods, 2) values are NaN.
func RollingStd(values []float64, window, minPeriods int) []float64 {
	if minPeriods < 2 {
		minPeriods = 2
	}
	out := make([]float64, len(values))
	for i := range values {
		n := trailing(i, window)
		if n < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(values[i+1-n:i+1], nil)
	}
	return out
}

// CumulativeReturn compounds percent returns: prod(1 + r/100) - 1.
// NaN returns stay NaN and are skipped by the running product.
func CumulativeReturn(pct []float64) []float64 {
	out := make([]float64, len(pct))
	prod := 1.0
	for i, r := range pct {
		if math.IsNaN(r) {
			out[i] = math.NaN()
			continue
		}
		prod *= 1 + r/100
		out[i] = prod - 1
	}
	return out
}

// Momentum returns values[i]/values[i-lag] - 1; the first lag positions are NaN.
func Momentum(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i]/values[i-lag] - 1
	}
	return out
}
