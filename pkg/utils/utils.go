// Package utils provides numeric and formatting helpers shared by the engine.
package utils

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TradingDaysPerYear is used to annualize daily statistics.
const TradingDaysPerYear = 252

// NormalizeSymbol trims and uppercases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Mean calculates the arithmetic mean. Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev calculates the sample standard deviation (n-1).
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// Covariance calculates the sample covariance of two equal-length series.
// Extra elements of the longer series are ignored.
func Covariance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	meanA := Mean(a[:n])
	meanB := Mean(b[:n])
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	return sum / float64(n-1)
}

// Variance calculates the sample variance.
func Variance(values []float64) float64 {
	sd := StdDev(values)
	return sd * sd
}

// Correlation calculates the Pearson correlation of two series.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sa, sb := StdDev(a[:n]), StdDev(b[:n])
	if sa == 0 || sb == 0 {
		return 0
	}
	return Covariance(a[:n], b[:n]) / (sa * sb)
}

// Negatives returns the strictly negative values in order.
func Negatives(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v < 0 {
			out = append(out, v)
		}
	}
	return out
}

// SortedCopy returns an ascending copy of values.
func SortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// Percentile returns the p-th percentile (0-100) of an ascending slice
// using linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity
// curve as a fraction of the peak.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := equity[0]
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - value) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// EquityCurve compounds periodic returns starting from 1.
func EquityCurve(returns []float64) []float64 {
	curve := make([]float64, 0, len(returns)+1)
	value := 1.0
	curve = append(curve, value)
	for _, r := range returns {
		value *= 1 + r
		curve = append(curve, value)
	}
	return curve
}

// RoundToDecimalPlaces rounds a decimal to specified decimal places.
func RoundToDecimalPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// Round rounds a float to specified decimal places.
func Round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
