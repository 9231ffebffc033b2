package filters

import (
	"fmt"
	"math"
)

// PassType selects the filter response shape.
type PassType int

const (
	// LowPass attenuates above the cutoff frequency
	LowPass PassType = iota
	// HighPass attenuates below the cutoff frequency
	HighPass
)

func (p PassType) String() string {
	switch p {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	default:
		return "unknown"
	}
}

// biquadSection is a single second-order filter stage in Direct Form II.
//
// The difference equation is:
// y[n] = b0*w[n] + b1*w[n-1] + b2*w[n-2], w[n] = x[n] - a1*w[n-1] - a2*w[n-2]
type biquadSection struct {
	b0, b1, b2 float64 // Numerator coefficients (a0-normalized)
	a1, a2     float64 // Denominator coefficients (a0-normalized)

	// State variables for direct form II implementation
	w1, w2 float64
}

func (s *biquadSection) process(input float64) float64 {
	w := input - s.a1*s.w1 - s.a2*s.w2
	output := s.b0*w + s.b1*s.w1 + s.b2*s.w2

	s.w2 = s.w1
	s.w1 = w

	return output
}

func (s *biquadSection) reset() {
	s.w1, s.w2 = 0.0, 0.0
}

// ButterworthFilter implements an even-order Butterworth high-pass or
// low-pass filter as a cascade of biquad sections.
//
// Each section uses the cookbook formulas from Robert Bristow-Johnson's
// "Cookbook formulae for audio EQ biquad filter coefficients" with the
// section Q values taken from the Butterworth pole positions, so the
// cascade has the maximally flat Butterworth magnitude response.
// Reference: https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html
//
// Filtering is causal (single pass); the resulting group delay is uniform
// across a processing run, which is what the matched-filter chain needs.
type ButterworthFilter struct {
	sampleRate int
	cutoffFreq float64 // Cutoff frequency in Hz
	order      int     // Filter order, must be even
	passType   PassType

	sections []biquadSection

	initialized bool
}

// NewHighPass creates an even-order Butterworth high-pass filter.
//
// Parameters:
//   - sampleRate: Sample rate in Hz
//   - cutoffFreq: -3 dB cutoff frequency in Hz
//   - order: filter order (2, 4, 6, ...); 4 matches the production chain
func NewHighPass(sampleRate int, cutoffFreq float64, order int) (*ButterworthFilter, error) {
	return newButterworth(sampleRate, cutoffFreq, order, HighPass)
}

// NewLowPass creates an even-order Butterworth low-pass filter.
func NewLowPass(sampleRate int, cutoffFreq float64, order int) (*ButterworthFilter, error) {
	return newButterworth(sampleRate, cutoffFreq, order, LowPass)
}

func newButterworth(sampleRate int, cutoffFreq float64, order int, passType PassType) (*ButterworthFilter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if cutoffFreq <= 0 || cutoffFreq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("cutoff frequency must be between 0 and Nyquist frequency (%d Hz)", sampleRate/2)
	}
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("order must be a positive even number, got %d", order)
	}

	bw := &ButterworthFilter{
		sampleRate: sampleRate,
		cutoffFreq: cutoffFreq,
		order:      order,
		passType:   passType,
	}

	bw.computeCoefficients()
	return bw, nil
}

// computeCoefficients builds one biquad per Butterworth pole pair.
//
// For an order-n (n even) Butterworth filter the section Q values are
// Q_k = 1 / (2*sin((2k+1)*pi/(2n))), k = 0..n/2-1; order 4 gives the
// familiar 1.3066 and 0.5412.
func (bw *ButterworthFilter) computeCoefficients() {
	numSections := bw.order / 2
	bw.sections = make([]biquadSection, numSections)

	// Normalize frequency: w0 = 2*pi*f0/Fs
	w0 := 2.0 * math.Pi * bw.cutoffFreq / float64(bw.sampleRate)

	// Prevent numerical issues at Nyquist
	if w0 >= math.Pi {
		w0 = math.Pi * 0.99
	}

	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)

	for k := 0; k < numSections; k++ {
		q := 1.0 / (2.0 * math.Sin(float64(2*k+1)*math.Pi/float64(2*bw.order)))

		// Alpha parameter: alpha = sin(w0)/(2*Q)
		alpha := sinW0 / (2.0 * q)

		var b0, b1, b2 float64
		switch bw.passType {
		case LowPass:
			b0 = (1.0 - cosW0) / 2.0
			b1 = 1.0 - cosW0
			b2 = (1.0 - cosW0) / 2.0
		case HighPass:
			b0 = (1.0 + cosW0) / 2.0
			b1 = -(1.0 + cosW0)
			b2 = (1.0 + cosW0) / 2.0
		}

		a0 := 1.0 + alpha
		a1 := -2.0 * cosW0
		a2 := 1.0 - alpha

		// Normalize by a0 for direct form II implementation
		bw.sections[k] = biquadSection{
			b0: b0 / a0,
			b1: b1 / a0,
			b2: b2 / a0,
			a1: a1 / a0,
			a2: a2 / a0,
		}
	}

	bw.initialized = true
}

// Process applies the filter cascade to a single sample.
func (bw *ButterworthFilter) Process(input float64) float64 {
	if !bw.initialized {
		bw.computeCoefficients()
	}

	output := input
	for i := range bw.sections {
		output = bw.sections[i].process(output)
	}
	return output
}

// ProcessBuffer applies the filter to an entire buffer of samples.
// The internal state carries across calls; Reset between unrelated signals.
func (bw *ButterworthFilter) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = bw.Process(sample)
	}
	return output
}

// Reset clears the delay lines of every section.
// Call this when processing discontinuous audio segments.
func (bw *ButterworthFilter) Reset() {
	for i := range bw.sections {
		bw.sections[i].reset()
	}
}

// SetParameters updates cutoff and order and recomputes coefficients.
func (bw *ButterworthFilter) SetParameters(cutoffFreq float64, order int) error {
	if cutoffFreq <= 0 || cutoffFreq >= float64(bw.sampleRate)/2 {
		return fmt.Errorf("cutoff frequency must be between 0 and Nyquist frequency (%d Hz)", bw.sampleRate/2)
	}
	if order < 2 || order%2 != 0 {
		return fmt.Errorf("order must be a positive even number, got %d", order)
	}

	bw.cutoffFreq = cutoffFreq
	bw.order = order
	bw.computeCoefficients()
	bw.Reset()

	return nil
}

// GetFrequencyResponse computes the magnitude and phase response at the
// given frequency by multiplying the responses of the cascaded sections.
// Returns magnitude (linear scale) and phase (radians).
func (bw *ButterworthFilter) GetFrequencyResponse(frequency float64) (magnitude, phase float64) {
	w := 2.0 * math.Pi * frequency / float64(bw.sampleRate)

	cosW := math.Cos(w)
	sinW := math.Sin(w)
	cos2W := math.Cos(2 * w)
	sin2W := math.Sin(2 * w)

	magnitude = 1.0
	phase = 0.0

	for _, s := range bw.sections {
		// Numerator: b0 + b1*e^-jw + b2*e^-j2w
		numReal := s.b0 + s.b1*cosW + s.b2*cos2W
		numImag := -s.b1*sinW - s.b2*sin2W

		// Denominator: 1 + a1*e^-jw + a2*e^-j2w
		denReal := 1.0 + s.a1*cosW + s.a2*cos2W
		denImag := -s.a1*sinW - s.a2*sin2W

		denMagSq := denReal*denReal + denImag*denImag

		hReal := (numReal*denReal + numImag*denImag) / denMagSq
		hImag := (numImag*denReal - numReal*denImag) / denMagSq

		magnitude *= math.Sqrt(hReal*hReal + hImag*hImag)
		phase += math.Atan2(hImag, hReal)
	}

	return magnitude, phase
}

// GetParameters returns the current filter parameters.
func (bw *ButterworthFilter) GetParameters() (cutoffFreq float64, order int, passType PassType) {
	return bw.cutoffFreq, bw.order, bw.passType
}
