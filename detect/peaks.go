package detect

import (
	"fmt"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
	"github.com/musselmanjoey/DingerStats/algorithms/stats"
	"github.com/musselmanjoey/DingerStats/logging"
)

// Candidate is one place where a single template scored above threshold
type Candidate struct {
	TimeSeconds float64 `json:"time_seconds"`
	Score       float64 `json:"score"`
	TemplateID  string  `json:"template_id"`
}

// PeakExtractor turns a similarity trace into candidate times: adaptive
// thresholding over the score distribution, then local maxima with a
// refractory window so one chime never yields a burst of candidates.
type PeakExtractor struct {
	threshold     *ThresholdConfig
	minGapSeconds float64
	logger        logging.Logger
}

// NewPeakExtractor creates an extractor. A nil threshold config gets the
// production percentile strategy.
func NewPeakExtractor(threshold *ThresholdConfig, minGapSeconds float64) *PeakExtractor {
	if threshold == nil {
		def := DefaultThresholdConfig()
		threshold = &def
	}

	return &PeakExtractor{
		threshold:     threshold,
		minGapSeconds: minGapSeconds,
		logger: logging.WithFields(logging.Fields{
			"component": "peak_extractor",
		}),
	}
}

// Threshold derives the effective candidate threshold from a score trace.
// Each configured strategy produces one value; several strategies combine
// into the strictest ("max", default) or most permissive ("min") of them.
func (pe *PeakExtractor) Threshold(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("empty score trace")
	}

	summary := stats.Summarize(scores)

	combined := 0.0
	for i, strategy := range pe.threshold.Strategies {
		var value float64

		switch strategy {
		case ThresholdPercentile:
			v, err := stats.Percentile(scores, pe.threshold.Percentile)
			if err != nil {
				return 0, err
			}
			value = v

		case ThresholdMeanStdDev:
			value = summary.Mean + pe.threshold.StdDevs*summary.StdDev

		case ThresholdMaxFraction:
			value = pe.threshold.MaxFraction * summary.Max

		default:
			return 0, fmt.Errorf("unknown threshold strategy %q", strategy)
		}

		if i == 0 {
			combined = value
			continue
		}
		if pe.threshold.Combine == "min" {
			if value < combined {
				combined = value
			}
		} else {
			if value > combined {
				combined = value
			}
		}
	}

	return combined, nil
}

// ExtractCandidates returns every local maximum of the trace at or above
// the adaptive threshold, keeping only the highest peak inside each
// refractory window. An empty result is a normal outcome, not an error.
func (pe *PeakExtractor) ExtractCandidates(trace *SimilarityTrace) ([]Candidate, error) {
	if trace == nil {
		return nil, fmt.Errorf("trace is nil")
	}
	if len(trace.Scores) == 0 {
		return []Candidate{}, nil
	}

	threshold, err := pe.Threshold(trace.Scores)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", trace.TemplateID, err)
	}

	minGap := int(pe.minGapSeconds * float64(trace.SampleRate))
	if minGap < 1 {
		minGap = 1
	}

	peaks := common.FindPeaks(trace.Scores, threshold, minGap)

	candidates := make([]Candidate, 0, len(peaks))
	for _, idx := range peaks {
		candidates = append(candidates, Candidate{
			TimeSeconds: trace.TimeAt(idx),
			Score:       trace.Scores[idx],
			TemplateID:  trace.TemplateID,
		})
	}

	pe.logger.Debug("candidates extracted", logging.Fields{
		"template":   trace.TemplateID,
		"threshold":  threshold,
		"candidates": len(candidates),
	})

	return candidates, nil
}
