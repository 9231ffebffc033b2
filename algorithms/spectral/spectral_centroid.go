package spectral

// SpectralCentroid computes the magnitude-weighted mean frequency of a
// spectrum. The template library ranks candidate template windows by how
// steady this value holds from frame to frame: a chime keeps its center,
// crowd noise wanders.
type SpectralCentroid struct {
	sampleRate int
	freqs      []float64
}

// NewSpectralCentroid creates a centroid calculator for the given sample rate
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{sampleRate: sampleRate}
}

// Compute returns the centroid of one magnitude spectrum in Hz. A silent
// spectrum has no center of mass and yields 0.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	sc.ensureFreqs(len(spectrum))

	var weighted, total float64
	for k, m := range spectrum {
		weighted += sc.freqs[k] * m
		total += m
	}
	if total < 1e-12 {
		return 0
	}
	return weighted / total
}

// ComputeFrames returns one centroid per spectrogram frame
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, frame := range spectrogram {
		centroids[t] = sc.Compute(frame)
	}
	return centroids
}

// ensureFreqs caches bin-center frequencies for the current bin count,
// assuming the bins span DC through Nyquist as an STFT half-spectrum does.
func (sc *SpectralCentroid) ensureFreqs(numBins int) {
	if len(sc.freqs) == numBins {
		return
	}
	sc.freqs = make([]float64, numBins)
	if numBins < 2 {
		return
	}
	nyquist := float64(sc.sampleRate) / 2.0
	for k := range sc.freqs {
		sc.freqs[k] = nyquist * float64(k) / float64(numBins-1)
	}
}
