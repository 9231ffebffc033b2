package detect

import (
	"fmt"
)

// AudioBuffer holds an immutable run of mono float64 samples at a fixed
// sample rate. Pipeline stages return new buffers and never mutate their
// input, so a buffer can be shared across concurrent template scans.
type AudioBuffer struct {
	samples    []float64
	sampleRate int
}

// NewAudioBuffer creates a buffer from a sample slice. The slice is copied
// so later writes by the caller cannot reach into the pipeline.
func NewAudioBuffer(samples []float64, sampleRate int) (*AudioBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)

	return &AudioBuffer{
		samples:    owned,
		sampleRate: sampleRate,
	}, nil
}

// Samples returns the underlying sample slice. The slice is shared with the
// buffer; callers must treat it as read-only.
func (b *AudioBuffer) Samples() []float64 {
	return b.samples
}

// Len returns the number of samples
func (b *AudioBuffer) Len() int {
	return len(b.samples)
}

// SampleRate returns the sample rate in Hz
func (b *AudioBuffer) SampleRate() int {
	return b.sampleRate
}

// Duration returns the buffer length in seconds
func (b *AudioBuffer) Duration() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// Segment returns a new buffer covering [offsetSeconds, offsetSeconds+
// durationSeconds), clamped to the available samples. Used for exemplar
// window extraction and listening checks.
func (b *AudioBuffer) Segment(offsetSeconds, durationSeconds float64) (*AudioBuffer, error) {
	if offsetSeconds < 0 {
		offsetSeconds = 0
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %f", durationSeconds)
	}

	start := int(offsetSeconds * float64(b.sampleRate))
	if start >= len(b.samples) {
		return nil, fmt.Errorf("segment offset %.2fs is past the end of a %.2fs buffer",
			offsetSeconds, b.Duration())
	}

	end := start + int(durationSeconds*float64(b.sampleRate))
	if end > len(b.samples) {
		end = len(b.samples)
	}

	return NewAudioBuffer(b.samples[start:end], b.sampleRate)
}
