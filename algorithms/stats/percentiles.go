package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SummaryStats contains basic descriptive statistics for a sample
type SummaryStats struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
}

// Summarize computes descriptive statistics in two passes over the data.
// Variance is the population variance (divide by N), matching how score
// traces and gap sequences are thresholded downstream.
func Summarize(data []float64) SummaryStats {
	n := len(data)
	if n == 0 {
		return SummaryStats{}
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(n)

	sumSq := 0.0
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n)

	return SummaryStats{
		Count:    n,
		Min:      floats.Min(data),
		Max:      floats.Max(data),
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
	}
}

// Percentile returns the p-th percentile (0-100) of data using linear
// interpolation between closest ranks
//
// References:
//   - Hyndman, R.J., Fan, Y. (1996). "Sample Quantiles in Statistical Packages"
//     The American Statistician, 50(4), 361-365 (this is their R-7 definition,
//     the default of numpy.percentile and Excel)
//
// The rank is p/100 * (n-1); fractional ranks interpolate between the two
// neighboring order statistics. Sorts a copy of the input; callers querying
// several percentiles of the same data should sort once and use
// PercentileOfSorted.
func Percentile(data []float64, p float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty data")
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return PercentileOfSorted(sorted, p)
}

// PercentileOfSorted returns the p-th percentile (0-100) of already-sorted data
func PercentileOfSorted(sorted []float64, p float64) (float64, error) {
	n := len(sorted)
	if n == 0 {
		return 0, fmt.Errorf("empty data")
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile %.2f out of range [0, 100]", p)
	}
	if n == 1 {
		return sorted[0], nil
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}
