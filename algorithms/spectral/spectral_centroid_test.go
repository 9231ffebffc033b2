package spectral

import (
	"math"
	"testing"

	"github.com/musselmanjoey/DingerStats/algorithms/windowing"
)

func TestSpectralCentroidPureTone(t *testing.T) {
	const rate = 22050
	const freq = 2500.0

	signal := make([]float64, rate)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}

	result, err := NewSTFT().ComputeWithWindow(signal, 2048, 512, rate, windowing.NewHann(2048, false))
	if err != nil {
		t.Fatalf("ComputeWithWindow: %v", err)
	}

	centroids := NewSpectralCentroid(rate).ComputeFrames(result.Magnitude)
	if len(centroids) != result.TimeFrames {
		t.Fatalf("got %d centroids for %d frames", len(centroids), result.TimeFrames)
	}

	// Window leakage smears a little energy around the tone, so allow a
	// couple of bins of slack
	mid := centroids[len(centroids)/2]
	if math.Abs(mid-freq) > 3*result.FreqResolution {
		t.Errorf("centroid = %.1f Hz, want near %.1f Hz", mid, freq)
	}
}

func TestSpectralCentroidSilence(t *testing.T) {
	sc := NewSpectralCentroid(22050)

	if got := sc.Compute(make([]float64, 1025)); got != 0 {
		t.Errorf("silent spectrum centroid = %f, want 0", got)
	}
	if got := sc.Compute(nil); got != 0 {
		t.Errorf("empty spectrum centroid = %f, want 0", got)
	}
}

func TestSpectralCentroidFlatSpectrum(t *testing.T) {
	const rate = 22050

	sc := NewSpectralCentroid(rate)
	flat := make([]float64, 1025)
	for i := range flat {
		flat[i] = 1.0
	}

	// Uniform weight puts the center of mass midway to Nyquist
	want := float64(rate) / 4.0
	if got := sc.Compute(flat); math.Abs(got-want) > 1e-6 {
		t.Errorf("flat spectrum centroid = %f, want %f", got, want)
	}
}

func TestSpectralCentroidAdaptsToBinCount(t *testing.T) {
	sc := NewSpectralCentroid(22050)

	first := make([]float64, 513)
	first[512] = 1.0
	if got := sc.Compute(first); math.Abs(got-11025.0) > 1e-6 {
		t.Errorf("top bin of 513 = %f, want 11025", got)
	}

	second := make([]float64, 1025)
	second[1024] = 1.0
	if got := sc.Compute(second); math.Abs(got-11025.0) > 1e-6 {
		t.Errorf("top bin of 1025 = %f, want 11025", got)
	}
}
