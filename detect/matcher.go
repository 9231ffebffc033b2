package detect

import (
	"fmt"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
	"github.com/musselmanjoey/DingerStats/algorithms/stats"
	"github.com/musselmanjoey/DingerStats/logging"
)

// SimilarityTrace is the valid-mode correlation of one template against the
// conditioned signal: one score per alignment offset, len(signal) -
// len(template) + 1 entries.
type SimilarityTrace struct {
	Scores     []float64 `json:"scores"`
	SampleRate int       `json:"sample_rate"`
	TemplateID string    `json:"template_id"`
}

// TimeAt converts an alignment offset into seconds
func (tr *SimilarityTrace) TimeAt(index int) float64 {
	return float64(index) / float64(tr.SampleRate)
}

// Matcher slides templates along the conditioned signal and scores every
// alignment. Correlate is a pure function of its inputs, so one Matcher can
// serve concurrent per-template scans.
type Matcher struct {
	filter *stats.MatchedFilter
	logger logging.Logger
}

// NewMatcher creates a matcher. Short templates are correlated directly;
// long ones go through FFT overlap-save blocks.
func NewMatcher() *Matcher {
	return &Matcher{
		filter: stats.NewMatchedFilter(),
		logger: logging.WithFields(logging.Fields{
			"component": "correlation_matcher",
		}),
	}
}

// Correlate returns the similarity trace of the template against the
// signal. Both are peak-normalized first so the scores compare across
// recordings with different levels, and every score is divided by the
// template length so they compare across template durations.
func (m *Matcher) Correlate(signal *AudioBuffer, template *Template) (*SimilarityTrace, error) {
	if signal == nil || signal.Len() == 0 {
		return nil, fmt.Errorf("signal is empty")
	}
	if template == nil || template.Buffer == nil || template.Buffer.Len() == 0 {
		return nil, fmt.Errorf("template has no audio")
	}
	if signal.SampleRate() != template.Buffer.SampleRate() {
		return nil, fmt.Errorf("template %q: sample rate %d Hz does not match signal rate %d Hz",
			template.ID, template.Buffer.SampleRate(), signal.SampleRate())
	}
	if signal.Len() < template.Buffer.Len() {
		return nil, &InsufficientDataError{
			SignalLen:   signal.Len(),
			TemplateLen: template.Buffer.Len(),
			TemplateID:  template.ID,
		}
	}

	normalizedSignal := common.PeakNormalize(signal.Samples())
	normalizedTemplate := common.PeakNormalize(template.Buffer.Samples())

	result, err := m.filter.Compute(normalizedSignal, normalizedTemplate)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", template.ID, err)
	}

	m.logger.Debug("correlation trace computed", logging.Fields{
		"template":   template.ID,
		"trace_len":  len(result.Scores),
		"peak_index": result.PeakIndex,
		"peak_score": result.PeakScore,
		"method":     result.Method,
	})

	return &SimilarityTrace{
		Scores:     result.Scores,
		SampleRate: signal.SampleRate(),
		TemplateID: template.ID,
	}, nil
}
