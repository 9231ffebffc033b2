package temporal

import (
	"math"
)

// Envelope reduces a sliding analysis frame to one amplitude figure per
// hop. The template library scans candidate regions with it. Frames that
// would run past the end of the signal are not emitted, so the output
// has (len(signal)-frameSize)/hopSize + 1 entries.
type Envelope struct{}

// NewEnvelope creates an envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMS reduces each frame to its root mean square amplitude
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	return scanFrames(signal, frameSize, hopSize, func(frame []float64) float64 {
		var sum float64
		for _, v := range frame {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(frame)))
	})
}

// ComputePeak reduces each frame to its largest absolute sample
func (e *Envelope) ComputePeak(signal []float64, frameSize, hopSize int) []float64 {
	return scanFrames(signal, frameSize, hopSize, func(frame []float64) float64 {
		var peak float64
		for _, v := range frame {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		return peak
	})
}

func scanFrames(signal []float64, frameSize, hopSize int, reduce func([]float64) float64) []float64 {
	if frameSize <= 0 || hopSize <= 0 || len(signal) < frameSize {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	out := make([]float64, numFrames)
	for i := range out {
		start := i * hopSize
		out[i] = reduce(signal[start : start+frameSize])
	}
	return out
}
