package calculator

import (
	"errors"
	"math"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// RollingMean returns the trailing mean over up to window values ending at
// each position. Positions with fewer than minPeriods values are NaN; the
// start of the series uses whatever is available instead of padding.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		n := trailing(i, window)
		if n < minPeriods {
			out[i] = math.NaN()
			continue
		}
		sma, err := CalculateSMA(values[:i+1], n)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = sma
	}
	return out
}

func trailing(i, window int) int {
	if i+1 < window {
		return i + 1
	}
	return window
}
