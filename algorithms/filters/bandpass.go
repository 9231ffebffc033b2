package filters

import (
	"fmt"
)

// BandPassFilter passes the band between two edge frequencies by cascading
// an even-order Butterworth high-pass at the lower edge with an even-order
// Butterworth low-pass at the upper edge.
//
// A wide passband (upper edge several octaves above the lower) is better
// served by this cascade than by a single resonant band-pass biquad: each
// edge keeps the full Butterworth rolloff while the passband stays flat.
type BandPassFilter struct {
	highPass *ButterworthFilter
	lowPass  *ButterworthFilter

	sampleRate int
	lowEdge    float64 // lower band edge in Hz (high-pass cutoff)
	highEdge   float64 // upper band edge in Hz (low-pass cutoff)
	order      int     // order of each cascaded filter
}

// NewBandPass creates a band-pass filter passing [lowEdge, highEdge] Hz.
// Order applies to each edge filter and must be even.
func NewBandPass(sampleRate int, lowEdge, highEdge float64, order int) (*BandPassFilter, error) {
	if lowEdge <= 0 || highEdge <= 0 {
		return nil, fmt.Errorf("band edges must be positive, got %f and %f", lowEdge, highEdge)
	}
	if lowEdge >= highEdge {
		return nil, fmt.Errorf("lower band edge %f must sit below upper band edge %f",
			lowEdge, highEdge)
	}

	highPass, err := NewHighPass(sampleRate, lowEdge, order)
	if err != nil {
		return nil, fmt.Errorf("lower edge: %w", err)
	}

	lowPass, err := NewLowPass(sampleRate, highEdge, order)
	if err != nil {
		return nil, fmt.Errorf("upper edge: %w", err)
	}

	return &BandPassFilter{
		highPass:   highPass,
		lowPass:    lowPass,
		sampleRate: sampleRate,
		lowEdge:    lowEdge,
		highEdge:   highEdge,
		order:      order,
	}, nil
}

// Process applies the band-pass filter to a single sample
func (bp *BandPassFilter) Process(input float64) float64 {
	return bp.lowPass.Process(bp.highPass.Process(input))
}

// ProcessBuffer applies the band-pass filter to an entire buffer of samples
func (bp *BandPassFilter) ProcessBuffer(input []float64) []float64 {
	return bp.lowPass.ProcessBuffer(bp.highPass.ProcessBuffer(input))
}

// Reset clears the delay lines of both edge filters.
// Call this when processing discontinuous audio segments.
func (bp *BandPassFilter) Reset() {
	bp.highPass.Reset()
	bp.lowPass.Reset()
}

// SetParameters updates the band edges and recomputes coefficients
func (bp *BandPassFilter) SetParameters(lowEdge, highEdge float64) error {
	if lowEdge <= 0 || lowEdge >= highEdge {
		return fmt.Errorf("band edges [%f, %f] are not an increasing positive pair",
			lowEdge, highEdge)
	}

	if err := bp.highPass.SetParameters(lowEdge, bp.order); err != nil {
		return fmt.Errorf("lower edge: %w", err)
	}
	if err := bp.lowPass.SetParameters(highEdge, bp.order); err != nil {
		return fmt.Errorf("upper edge: %w", err)
	}

	bp.lowEdge = lowEdge
	bp.highEdge = highEdge
	return nil
}

// GetFrequencyResponse computes the magnitude and phase response at the
// given frequency. The cascade response is the product of the edge filter
// magnitudes and the sum of their phases.
func (bp *BandPassFilter) GetFrequencyResponse(frequency float64) (magnitude, phase float64) {
	hpMag, hpPhase := bp.highPass.GetFrequencyResponse(frequency)
	lpMag, lpPhase := bp.lowPass.GetFrequencyResponse(frequency)

	return hpMag * lpMag, hpPhase + lpPhase
}

// GetParameters returns the current band edges and per-edge filter order
func (bp *BandPassFilter) GetParameters() (lowEdge, highEdge float64, order int) {
	return bp.lowEdge, bp.highEdge, bp.order
}
