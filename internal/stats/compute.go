// Package stats maintains per-pair bounded price histories and the rolling
// statistics derived from them.
package stats

import "math"

// Mean calculates the arithmetic mean over the last n values. Returns 0
// when the slice is empty or n <= 0.
func Mean(values []float64, n int) float64 {
	values = lastN(values, n)
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stddev calculates the sample standard deviation (n-1 denominator) over
// the last n values. Returns 0 with fewer than 2 samples.
func Stddev(values []float64, n int) float64 {
	values = lastN(values, n)
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values, len(values))
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Volatility calculates the sample standard deviation of fractional price
// changes over the last n prices. Short history is not an error: returns 0
// with fewer than 2 prices or fewer than 2 usable changes.
func Volatility(prices []float64, n int) float64 {
	prices = lastN(prices, n)
	if len(prices) < 2 {
		return 0
	}

	changes := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		changes = append(changes, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(changes) < 2 {
		return 0
	}
	return Stddev(changes, len(changes))
}

// Bands returns the mean-reversion band bounds mean*(1-width) and
// mean*(1+width).
func Bands(mean, width float64) (lower, upper float64) {
	return mean * (1 - width), mean * (1 + width)
}

// lastN returns the trailing n elements, or the whole slice when it is
// shorter. The effective window is always min(n, len(values)).
func lastN(values []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
