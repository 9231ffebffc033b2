package stats

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/musselmanjoey/DingerStats/algorithms/spectral"
)

// CorrelationMethod selects how the sliding dot product is evaluated
type CorrelationMethod int

const (
	// AutoSelect picks time or frequency domain based on input sizes
	AutoSelect CorrelationMethod = iota

	// TimeDomain evaluates the sliding dot product directly, O(N*M)
	TimeDomain

	// FrequencyDomain evaluates via FFT overlap-save blocks, O(N log M)
	FrequencyDomain
)

// String returns a human-readable name for the correlation method
func (m CorrelationMethod) String() string {
	switch m {
	case AutoSelect:
		return "auto"
	case TimeDomain:
		return "time_domain"
	case FrequencyDomain:
		return "frequency_domain"
	default:
		return "unknown"
	}
}

// MatchResult contains the valid-mode correlation trace and its peak
type MatchResult struct {
	Scores    []float64 `json:"scores"`     // One score per alignment offset, length N-M+1
	PeakIndex int       `json:"peak_index"` // Offset of the strongest alignment
	PeakScore float64   `json:"peak_score"` // Score at PeakIndex
	Method    string    `json:"method"`     // Evaluation path actually used
}

// MatchedFilter computes valid-mode cross-correlation of a long signal
// against a shorter template
//
// References:
//   - Lewis, J.P. (1995). "Fast Template Matching", Vision Interface 95
//   - Oppenheim, A.V., Schafer, R.W. (2009). "Discrete-Time Signal Processing"
//     (overlap-save block convolution, Section 8.7)
//   - Turin, G.L. (1960). "An Introduction to Matched Filters"
//     IRE Transactions on Information Theory, 6(3), 311-329
//
// Each output score is the mean pointwise product of the template with the
// signal segment starting at that offset:
//
//	score[i] = (1/M) * sum_{j=0..M-1} signal[i+j] * template[j]
//
// The template never extends past the signal edge, so the trace has exactly
// N-M+1 entries. Small inputs are evaluated directly; long inputs go through
// FFT overlap-save blocks so memory stays bounded by the block size rather
// than the signal length.
type MatchedFilter struct {
	method       CorrelationMethod
	fftThreshold int // direct-path cost cutoff, in multiply-adds
	fft          *spectral.FFT
}

// NewMatchedFilter creates a matched filter with automatic method selection
func NewMatchedFilter() *MatchedFilter {
	return &MatchedFilter{
		method:       AutoSelect,
		fftThreshold: 1 << 22,
		fft:          spectral.NewFFT(),
	}
}

// NewMatchedFilterWithMethod creates a matched filter pinned to one method
func NewMatchedFilterWithMethod(method CorrelationMethod) *MatchedFilter {
	mf := NewMatchedFilter()
	mf.method = method
	return mf
}

// Compute returns the valid-mode correlation trace of signal against template
func (mf *MatchedFilter) Compute(signal, template []float64) (*MatchResult, error) {
	n := len(signal)
	m := len(template)

	if m == 0 {
		return nil, fmt.Errorf("template is empty")
	}
	if n < m {
		return nil, fmt.Errorf("signal length %d is shorter than template length %d", n, m)
	}

	numValid := n - m + 1

	method := mf.method
	if method == AutoSelect {
		if m*numValid <= mf.fftThreshold {
			method = TimeDomain
		} else {
			method = FrequencyDomain
		}
	}

	var scores []float64
	switch method {
	case TimeDomain:
		scores = mf.computeDirect(signal, template, numValid)
	case FrequencyDomain:
		scores = mf.computeOverlapSave(signal, template, numValid)
	default:
		return nil, fmt.Errorf("unsupported correlation method: %v", method)
	}

	peakIdx := 0
	peakScore := scores[0]
	for i, s := range scores {
		if s > peakScore {
			peakScore = s
			peakIdx = i
		}
	}

	return &MatchResult{
		Scores:    scores,
		PeakIndex: peakIdx,
		PeakScore: peakScore,
		Method:    method.String(),
	}, nil
}

// computeDirect evaluates the sliding dot product sample by sample
func (mf *MatchedFilter) computeDirect(signal, template []float64, numValid int) []float64 {
	m := len(template)
	invM := 1.0 / float64(m)

	scores := make([]float64, numValid)
	for i := 0; i < numValid; i++ {
		sum := 0.0
		segment := signal[i : i+m]
		for j, tv := range template {
			sum += segment[j] * tv
		}
		scores[i] = sum * invM
	}
	return scores
}

// computeOverlapSave evaluates the trace in FFT blocks.
//
// Each block of L samples yields L-M+1 valid scores via the circular
// cross-correlation theorem: IFFT(FFT(block) * conj(FFT(template))). Scores
// past offset L-M wrap around the block boundary and are discarded; the next
// block starts at the first discarded offset so every valid offset is
// produced exactly once.
func (mf *MatchedFilter) computeOverlapSave(signal, template []float64, numValid int) []float64 {
	m := len(template)
	invM := 1.0 / float64(m)

	blockSize := blockSizeFor(m)
	step := blockSize - m + 1

	// The template spectrum is shared by every block.
	tPad := make([]float64, blockSize)
	copy(tPad, template)
	templateSpec := mf.fft.Compute(tPad)
	for k, c := range templateSpec {
		templateSpec[k] = cmplx.Conj(c)
	}

	scores := make([]float64, numValid)
	block := make([]float64, blockSize)

	for start := 0; start < numValid; start += step {
		end := start + blockSize
		if end > len(signal) {
			end = len(signal)
		}
		copied := copy(block, signal[start:end])
		for k := copied; k < blockSize; k++ {
			block[k] = 0
		}

		blockSpec := mf.fft.Compute(block)
		for k := range blockSpec {
			blockSpec[k] *= templateSpec[k]
		}
		corr := mf.fft.ComputeInverseReal(blockSpec)

		count := step
		if start+count > numValid {
			count = numValid - start
		}
		for k := 0; k < count; k++ {
			scores[start+k] = corr[k] * invM
		}
	}
	return scores
}

// blockSizeFor picks a power-of-two FFT block comfortably larger than the
// template, so most of each block produces valid output
func blockSizeFor(templateLen int) int {
	target := 4 * templateLen
	if target < 4096 {
		target = 4096
	}
	size := 1
	for size < target {
		size <<= 1
	}
	return size
}

// NormalizedPeak reports the peak score relative to the trace RMS, a rough
// indicator of how sharply the template locks onto one alignment
func (r *MatchResult) NormalizedPeak() float64 {
	if len(r.Scores) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, s := range r.Scores {
		sumSq += s * s
	}
	rms := math.Sqrt(sumSq / float64(len(r.Scores)))
	if rms < 1e-12 {
		return 0
	}
	return r.PeakScore / rms
}
