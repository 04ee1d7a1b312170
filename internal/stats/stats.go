// Package stats holds the descriptive statistics the survey reports use.
//
// Callers pass only present (non-NaN) values. Empty input yields NaN.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of xs, or NaN when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Median returns the median of xs (mean of the two middle values for an even
// count), or NaN for an empty slice. xs is not modified.
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Quantile returns the p-quantile of xs using linear interpolation between
// closest ranks: position (n-1)*p in the sorted data. xs is not modified.
//
// gonum's stat.Quantile estimators interpolate on i/n, which disagrees with
// the conventional (n-1)*p definition used for survey reporting.
func Quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)

	pos := p * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

// Mode returns the most frequent value of xs. Ties resolve to the smallest
// value. Empty input yields NaN.
func Mode(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)

	best, bestN := s[0], 0
	for i := 0; i < len(s); {
		j := i
		for j < len(s) && s[j] == s[i] {
			j++
		}
		if j-i > bestN {
			best, bestN = s[i], j-i
		}
		i = j
	}
	return best
}

// Round rounds x to the given number of decimals, half away from zero.
func Round(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// RoundEven rounds x to the nearest integer, halves to even.
func RoundEven(x float64) float64 {
	return math.RoundToEven(x)
}
