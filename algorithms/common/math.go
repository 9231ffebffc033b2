// Package common holds the numeric helpers shared by the conditioning,
// matching, and peak-extraction stages.
package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopulationStdDev returns the standard deviation under the 1/n
// convention used for correlation-trace and gap statistics.
func PopulationStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.PopStdDev(data, nil)
}

// RMS returns the root mean square amplitude
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	var sum float64
	for _, v := range data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(data)))
}

// PeakAmplitude returns the largest absolute sample value
func PeakAmplitude(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
}

// PeakNormalize divides every sample by the peak absolute value so the
// peak sits at 1.0. Returns a copy; near-silent input is returned
// unscaled.
func PeakNormalize(data []float64) []float64 {
	return ScaleToPeak(data, 1.0)
}

// ScaleToPeak rescales data so the peak absolute value equals target.
// Used to leave headroom after filtering (e.g. target 0.8).
func ScaleToPeak(data []float64, target float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)

	peak := PeakAmplitude(data)
	if peak < 1e-10 {
		return out
	}

	scale := target / peak
	for i := range out {
		out[i] *= scale
	}
	return out
}

// CenteredMovingAverage smooths data with a window centered on each
// sample, shrinking the window at the edges. Matches 'same'-mode box
// convolution.
func CenteredMovingAverage(data []float64, windowSize int) []float64 {
	if len(data) == 0 || windowSize <= 1 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	result := make([]float64, len(data))
	half := windowSize / 2

	for i := range data {
		start := i - half
		end := start + windowSize
		if start < 0 {
			start = 0
		}
		if end > len(data) {
			end = len(data)
		}

		var sum float64
		for j := start; j < end; j++ {
			sum += data[j]
		}
		result[i] = sum / float64(windowSize)
	}

	return result
}

// FindPeaks finds local maxima at or above minHeight, enforcing a
// minimum index distance between kept peaks. Peaks are selected
// highest-first so a taller peak always wins inside a refractory window;
// the result is sorted by index and every adjacent pair is guaranteed
// >= minDistance apart.
//
// References:
//   - Equivalent to scipy.signal.find_peaks(height=..., distance=...)
func FindPeaks(data []float64, minHeight float64, minDistance int) []int {
	if len(data) < 3 {
		return []int{}
	}
	if minDistance < 1 {
		minDistance = 1
	}

	var maxima []int
	for i := 1; i < len(data)-1; i++ {
		if data[i] > data[i-1] && data[i] > data[i+1] && data[i] >= minHeight {
			maxima = append(maxima, i)
		}
	}

	// Highest peaks claim their refractory window first
	sort.Slice(maxima, func(a, b int) bool {
		if data[maxima[a]] != data[maxima[b]] {
			return data[maxima[a]] > data[maxima[b]]
		}
		return maxima[a] < maxima[b]
	})

	var kept []int
	for _, idx := range maxima {
		ok := true
		for _, k := range kept {
			if abs(idx-k) < minDistance {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, idx)
		}
	}

	sort.Ints(kept)
	return kept
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
