// Package windowing provides analysis window functions for the STFT.
// Only the Hann window is carried: it is the analysis and synthesis
// taper for spectral subtraction, where its periodic form sums to a
// constant under 50% or greater overlap.
package windowing

import (
	"fmt"
	"math"
)

// Hann is a raised-cosine window with precomputed coefficients.
type Hann struct {
	size   int
	coeffs []float64
}

// NewHann creates a Hann window of the given size. Periodic windows
// (symmetric=false) are the right choice for STFT analysis and
// resynthesis; symmetric windows are for filter design.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:   size,
		coeffs: make([]float64, size),
	}

	period := float64(size)
	if symmetric {
		period = float64(size - 1)
	}
	for i := range h.coeffs {
		h.coeffs[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/period)
	}

	return h
}

// Apply returns a windowed copy of signal, or nil on length mismatch
func (h *Hann) Apply(signal []float64) []float64 {
	if len(signal) != h.size {
		return nil
	}

	out := make([]float64, h.size)
	for i, v := range signal {
		out[i] = v * h.coeffs[i]
	}
	return out
}

// ApplyInPlace tapers signal in place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i := range signal {
		signal[i] *= h.coeffs[i]
	}
	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (h *Hann) GetCoefficients() []float64 {
	out := make([]float64, len(h.coeffs))
	copy(out, h.coeffs)
	return out
}

// GetSize returns the window length in samples
func (h *Hann) GetSize() int {
	return h.size
}
