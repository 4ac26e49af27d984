package metrics

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStddev returns the sample standard deviation (n-1 denominator).
// Needs at least 2 samples.
func SampleStddev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := Mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile uses linear interpolation over a copy of xs.
// p is the percentile as a fraction (0.05 = 5th percentile).
func Percentile(xs []float64, p float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// percentileSorted assumes xs is pre-sorted ascending.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// CoefficientOfVariation returns stddev/|mean|, 0 when the mean is zero.
func CoefficientOfVariation(xs []float64) float64 {
	mean := Mean(xs)
	if mean == 0 {
		return 0
	}
	return SampleStddev(xs) / math.Abs(mean)
}

// linearRegression fits y = alpha + beta*x over x = 0..n-1 and returns the
// slope together with the residual standard error sqrt(SSE/(n-2)).
func linearRegression(ys []float64) (slope, residualStdErr float64) {
	n := len(ys)
	if n < 3 {
		return 0, 0
	}

	meanX := float64(n-1) / 2
	meanY := Mean(ys)

	var sxx, sxy float64
	for i, y := range ys {
		dx := float64(i) - meanX
		sxx += dx * dx
		sxy += dx * (y - meanY)
	}
	if sxx == 0 {
		return 0, 0
	}
	slope = sxy / sxx
	alpha := meanY - slope*meanX

	var sse float64
	for i, y := range ys {
		resid := y - (alpha + slope*float64(i))
		sse += resid * resid
	}
	residualStdErr = math.Sqrt(sse / float64(n-2))
	return slope, residualStdErr
}
