// Package formulas provides small numerical helpers shared across the
// research pipeline.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// TrailingMean returns, for each position t, the simple moving average of the
// window values strictly before t (the window ending at t-1). Positions
// without a full window are NaN. Used for the past-return expected-return
// proxy.
func TrailingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(values) < window+1 {
		return out
	}

	if AllFinite(values) {
		sma := talib.Sma(values, window)
		// talib leaves positions before the first full window at zero; the
		// shift by one keeps the proxy strictly backward-looking.
		for t := window; t < len(values); t++ {
			out[t] = sma[t-1]
		}
		return out
	}

	// talib's running sum never recovers from a NaN, so series with missing
	// values take the direct path. A window containing a NaN yields NaN.
	for t := window; t < len(values); t++ {
		var sum float64
		for _, v := range values[t-window : t] {
			sum += v
		}
		out[t] = sum / float64(window)
	}
	return out
}

// TrailingStdDev returns, for each position t, the sample standard deviation
// of values over the window ending at t. Early positions use the expanding
// prefix so every position with at least two observations gets an estimate;
// single-observation prefixes are NaN.
func TrailingStdDev(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for t := range values {
		lo := 0
		if window > 0 && t+1 > window {
			lo = t + 1 - window
		}
		if t-lo < 1 {
			out[t] = math.NaN()
			continue
		}
		out[t] = stat.StdDev(values[lo:t+1], nil)
	}
	return out
}

// AllFinite reports whether every value is finite (no NaN or Inf).
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
