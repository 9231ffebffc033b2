package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT is a thin wrapper over mjibson/go-dsp. Keeping the transform
// behind one type means the STFT and the matched filter agree on a
// single implementation (and its scaling conventions).
type FFT struct{}

// NewFFT creates an FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute transforms a real signal to the frequency domain. Any length
// is accepted; go-dsp falls back to Bluestein for non-power-of-2 sizes.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse transform and discards the
// imaginary parts, which are numerical noise whenever the spectrum has
// Hermitian symmetry.
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	out := make([]float64, len(result))
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}
