package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// STFT slices a signal into overlapping windowed frames and transforms
// each to the frequency domain. The engine uses it in two places: the
// conditioner's spectral subtraction (analyze, attenuate, resynthesize)
// and the per-frame centroid track behind the template quality metric.
type STFT struct {
	fft *FFT
}

// STFTResult is a time-frequency decomposition: one magnitude and phase
// row per frame, positive-frequency bins only.
type STFTResult struct {
	Magnitude [][]float64 `json:"magnitude"`
	Phase     [][]float64 `json:"phase"`

	TimeFrames int `json:"time_frames"`
	FreqBins   int `json:"freq_bins"`
	SampleRate int `json:"sample_rate"`
	WindowSize int `json:"window_size"`
	HopSize    int `json:"hop_size"`

	FreqResolution float64 `json:"freq_resolution"` // Hz per bin
	TimeResolution float64 `json:"time_resolution"` // seconds per frame
}

// Window tapers an analysis frame in place
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates an STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// ComputeWithWindow transforms signal into overlapping frames of
// windowSize samples spaced hopSize apart, tapered by window. Frames are
// transformed in parallel; trailing samples that do not fill a frame are
// dropped.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	phase := make([][]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		magnitude[i] = make([]float64, freqBins)
		phase[i] = make([]float64, freqBins)
	}

	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for i, n := 0, workersFor(numFrames); i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frame, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frame); err != nil {
						continue
					}
				}

				spectrum := s.fft.Compute(frame)
				for k := 0; k < freqBins; k++ {
					magnitude[frameIdx][k] = cmplx.Abs(spectrum[k])
					phase[frameIdx][k] = cmplx.Phase(spectrum[k])
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
			jobs <- frameIdx
		}
	}()

	wg.Wait()

	return &STFTResult{
		Magnitude:      magnitude,
		Phase:          phase,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse reconstructs a time-domain signal from magnitude and phase by
// weighted overlap-add. The intended use is a modified magnitude matrix
// with the original phase (spectral subtraction); with an unmodified
// spectrum the round trip is exact wherever the accumulated squared
// window has support, which for Hann at 4x overlap is everything but the
// first and last window of the signal.
//
// The synthesis window must match the analysis window.
//
// References:
//   - Griffin, D., Lim, J. (1984). "Signal Estimation from Modified
//     Short-Time Fourier Transform"
func (s *STFT) Inverse(result *STFTResult, window Window) ([]float64, error) {
	if result == nil || result.TimeFrames == 0 {
		return nil, fmt.Errorf("empty STFT result")
	}

	windowSize := result.WindowSize
	hopSize := result.HopSize
	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid window size %d or hop size %d", windowSize, hopSize)
	}
	if want := windowSize/2 + 1; result.FreqBins != want {
		return nil, fmt.Errorf("frequency bins (%d) don't match window size %d (want %d)", result.FreqBins, windowSize, want)
	}

	// Materialize the synthesis window once; this also validates its size
	// against the frame size before any work happens.
	synthesis := make([]float64, windowSize)
	for i := range synthesis {
		synthesis[i] = 1.0
	}
	if window != nil {
		if err := window.ApplyInPlace(synthesis); err != nil {
			return nil, fmt.Errorf("synthesis window: %w", err)
		}
	}

	// Rebuild frames in parallel, overlap-add serially afterwards
	frames := make([][]float64, result.TimeFrames)
	jobs := make(chan int, result.TimeFrames)

	var wg sync.WaitGroup
	for i, n := 0, workersFor(result.TimeFrames); i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			spectrum := make([]complex128, windowSize)

			for frameIdx := range jobs {
				mag := result.Magnitude[frameIdx]
				ph := result.Phase[frameIdx]

				for k := 0; k < result.FreqBins; k++ {
					spectrum[k] = cmplx.Rect(mag[k], ph[k])
				}
				// Negative frequencies by Hermitian symmetry
				for k := 1; k < windowSize-result.FreqBins+1; k++ {
					spectrum[windowSize-k] = cmplx.Conj(spectrum[k])
				}

				frame := s.fft.ComputeInverseReal(spectrum)
				for i := range frame {
					frame[i] *= synthesis[i]
				}
				frames[frameIdx] = frame
			}
		}()
	}

	go func() {
		defer close(jobs)
		for frameIdx := 0; frameIdx < result.TimeFrames; frameIdx++ {
			jobs <- frameIdx
		}
	}()

	wg.Wait()

	outputLen := (result.TimeFrames-1)*hopSize + windowSize
	output := make([]float64, outputLen)
	windowSum := make([]float64, outputLen)

	for frameIdx, frame := range frames {
		start := frameIdx * hopSize
		for i, v := range frame {
			output[start+i] += v
			windowSum[start+i] += synthesis[i] * synthesis[i]
		}
	}

	for i := range output {
		if windowSum[i] > 1e-10 {
			output[i] /= windowSum[i]
		}
	}

	return output, nil
}

// workersFor sizes the worker pool to the frame count. Tiny transforms
// are not worth spreading across every core.
func workersFor(numFrames int) int {
	numCPU := runtime.NumCPU()
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	return min(numCPU, max(8, numFrames/256))
}
