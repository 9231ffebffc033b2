package detect

import (
	"fmt"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
	"github.com/musselmanjoey/DingerStats/algorithms/spectral"
	"github.com/musselmanjoey/DingerStats/algorithms/temporal"
	"github.com/musselmanjoey/DingerStats/algorithms/windowing"
	"github.com/musselmanjoey/DingerStats/logging"
)

// Template is one reference exemplar of the chime, cut from conditioned
// source audio
type Template struct {
	ID                  string  `json:"id"`
	SourceLabel         string  `json:"source_label"`
	SourceOffsetSeconds float64 `json:"source_offset_seconds"`

	Buffer *AudioBuffer `json:"-"`
}

// Duration returns the template length in seconds
func (t *Template) Duration() float64 {
	if t.Buffer == nil {
		return 0
	}
	return t.Buffer.Duration()
}

// QualityMetric names the score used to rank candidate windows during the
// padded-window search
type QualityMetric string

const (
	// QualityRMSEnergy ranks windows by RMS level. Default; the chime is
	// consistently the loudest event near its labeled estimate.
	QualityRMSEnergy QualityMetric = "rms_energy"

	// QualityPeakAmplitude ranks windows by their largest absolute sample
	QualityPeakAmplitude QualityMetric = "peak_amplitude"

	// QualityCentroidSpread ranks windows by the spread of the spectral
	// centroid across STFT frames, favoring the chime's tonal movement
	// over steady commentary
	QualityCentroidSpread QualityMetric = "centroid_spread"
)

// Window search geometry for BuildTemplate. Defaults follow the labeling
// workflow: estimates are accurate to a couple of seconds, so a 4 s search
// window padded 1 s before the estimate always contains the chime.
const (
	defaultPadSeconds      = 1.0
	defaultSearchSeconds   = 4.0
	defaultTemplateSeconds = 2.0
	defaultStepSeconds     = 0.1

	centroidWindowSize = 2048
	centroidHopSize    = 512
)

// TemplateSpec describes how to refine one labeled exemplar into a template
type TemplateSpec struct {
	// Label identifies the exemplar (game + inning in practice)
	Label string `json:"label"`

	// EstimateSeconds is the coarse human-labeled chime time in the source
	EstimateSeconds float64 `json:"estimate_seconds"`

	// PadSeconds is how far before the estimate the search window starts
	PadSeconds float64 `json:"pad_seconds"`

	// SearchSeconds is the total search window length
	SearchSeconds float64 `json:"search_seconds"`

	// TemplateSeconds is the refined template length
	TemplateSeconds float64 `json:"template_seconds"`

	// StepSeconds is the scan step inside the search window
	StepSeconds float64 `json:"step_seconds"`

	// Metric ranks the scanned positions; empty means RMS energy
	Metric QualityMetric `json:"metric"`
}

// DefaultTemplateSpec returns the production search geometry for a labeled
// estimate
func DefaultTemplateSpec(label string, estimateSeconds float64) TemplateSpec {
	return TemplateSpec{
		Label:           label,
		EstimateSeconds: estimateSeconds,
		PadSeconds:      defaultPadSeconds,
		SearchSeconds:   defaultSearchSeconds,
		TemplateSeconds: defaultTemplateSeconds,
		StepSeconds:     defaultStepSeconds,
		Metric:          QualityRMSEnergy,
	}
}

// BuildTemplate refines a coarse labeled estimate into a template by
// scanning a padded window around the estimate and keeping the
// highest-quality position. The search loop is metric-independent: every
// metric produces one score per scan position and the best position wins.
//
// A flat metric across the window (silence, dropout) returns a
// TemplateQualityError instead of a degenerate template.
func BuildTemplate(source *AudioBuffer, spec TemplateSpec) (*Template, error) {
	if source == nil || source.Len() == 0 {
		return nil, fmt.Errorf("template %q: source is empty", spec.Label)
	}
	if spec.TemplateSeconds <= 0 || spec.SearchSeconds < spec.TemplateSeconds {
		return nil, fmt.Errorf("template %q: search window %.2fs cannot hold a %.2fs template",
			spec.Label, spec.SearchSeconds, spec.TemplateSeconds)
	}
	if spec.StepSeconds <= 0 {
		return nil, fmt.Errorf("template %q: step must be positive, got %f", spec.Label, spec.StepSeconds)
	}

	rate := source.SampleRate()
	samples := source.Samples()

	windowStart := int((spec.EstimateSeconds - spec.PadSeconds) * float64(rate))
	if windowStart < 0 {
		windowStart = 0
	}
	if windowStart >= len(samples) {
		return nil, fmt.Errorf("template %q: estimate %.2fs is past the end of a %.2fs source",
			spec.Label, spec.EstimateSeconds, source.Duration())
	}

	windowEnd := windowStart + int(spec.SearchSeconds*float64(rate))
	if windowEnd > len(samples) {
		windowEnd = len(samples)
	}
	window := samples[windowStart:windowEnd]

	templateLen := int(spec.TemplateSeconds * float64(rate))
	if len(window) < templateLen {
		return nil, fmt.Errorf("template %q: only %.2fs of source left after the estimate, need %.2fs",
			spec.Label, float64(len(window))/float64(rate), spec.TemplateSeconds)
	}

	step := int(spec.StepSeconds * float64(rate))
	if step < 1 {
		step = 1
	}

	scores, err := qualityScores(window, templateLen, step, spec.Metric, rate)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", spec.Label, err)
	}

	best := 0
	worst := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
		if s < scores[worst] {
			worst = i
		}
	}

	if scores[best] <= 0 || (len(scores) > 1 && scores[best]-scores[worst] <= scores[best]*1e-9) {
		return nil, &TemplateQualityError{Label: spec.Label, Metric: spec.Metric}
	}

	bestOffset := best * step
	buffer, err := NewAudioBuffer(window[bestOffset:bestOffset+templateLen], rate)
	if err != nil {
		return nil, err
	}

	resolved := float64(windowStart+bestOffset) / float64(rate)

	logging.Debug("template refined", logging.Fields{
		"component": "template_library",
		"label":     spec.Label,
		"estimate":  spec.EstimateSeconds,
		"resolved":  resolved,
		"metric":    string(metricOrDefault(spec.Metric)),
		"positions": len(scores),
	})

	return &Template{
		ID:                  spec.Label,
		SourceLabel:         spec.Label,
		SourceOffsetSeconds: resolved,
		Buffer:              buffer,
	}, nil
}

// qualityScores returns one score per scan position. Swapping the metric
// never touches the caller's search loop.
func qualityScores(window []float64, templateLen, step int, metric QualityMetric, rate int) ([]float64, error) {
	env := temporal.NewEnvelope()

	switch metricOrDefault(metric) {
	case QualityRMSEnergy:
		return env.ComputeRMS(window, templateLen, step), nil

	case QualityPeakAmplitude:
		return env.ComputePeak(window, templateLen, step), nil

	case QualityCentroidSpread:
		return centroidSpreadScores(window, templateLen, step, rate)

	default:
		return nil, fmt.Errorf("unknown quality metric %q", metric)
	}
}

func metricOrDefault(metric QualityMetric) QualityMetric {
	if metric == "" {
		return QualityRMSEnergy
	}
	return metric
}

// centroidSpreadScores computes the population standard deviation of the
// per-frame spectral centroid for each scan position
func centroidSpreadScores(window []float64, templateLen, step, rate int) ([]float64, error) {
	if templateLen < centroidWindowSize {
		return nil, fmt.Errorf("centroid metric needs at least %d samples per position, got %d",
			centroidWindowSize, templateLen)
	}

	stft := spectral.NewSTFT()
	centroid := spectral.NewSpectralCentroid(rate)
	hann := windowing.NewHann(centroidWindowSize, false)

	var scores []float64
	for offset := 0; offset+templateLen <= len(window); offset += step {
		segment := window[offset : offset+templateLen]

		result, err := stft.ComputeWithWindow(segment, centroidWindowSize, centroidHopSize, rate, hann)
		if err != nil {
			return nil, err
		}

		centroids := centroid.ComputeFrames(result.Magnitude)
		scores = append(scores, common.PopulationStdDev(centroids))
	}

	return scores, nil
}

// AverageTemplates merges several exemplars of the same chime into one
// denoised reference: every buffer is trimmed to the shortest common length
// and averaged sample-wise. Uncorrelated commentary bleed cancels; the
// chime, present in every exemplar, survives.
func AverageTemplates(label string, templates ...*Template) (*Template, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("average template %q: no templates given", label)
	}

	rate := 0
	minLen := 0
	for i, t := range templates {
		if t == nil || t.Buffer == nil || t.Buffer.Len() == 0 {
			return nil, fmt.Errorf("average template %q: template %d is empty", label, i)
		}
		if rate == 0 {
			rate = t.Buffer.SampleRate()
			minLen = t.Buffer.Len()
			continue
		}
		if t.Buffer.SampleRate() != rate {
			return nil, fmt.Errorf("average template %q: sample rate mismatch, %d Hz vs %d Hz",
				label, t.Buffer.SampleRate(), rate)
		}
		if t.Buffer.Len() < minLen {
			minLen = t.Buffer.Len()
		}
	}

	averaged := make([]float64, minLen)
	for _, t := range templates {
		samples := t.Buffer.Samples()
		for i := range averaged {
			averaged[i] += samples[i]
		}
	}
	for i := range averaged {
		averaged[i] /= float64(len(templates))
	}

	buffer, err := NewAudioBuffer(averaged, rate)
	if err != nil {
		return nil, err
	}

	return &Template{
		ID:          label,
		SourceLabel: label,
		Buffer:      buffer,
	}, nil
}

// Library holds the ordered template set for a detection run. Insertion
// order is priority order; IDs are unique within a library.
type Library struct {
	templates []*Template
	logger    logging.Logger
}

// NewLibrary creates an empty template library
func NewLibrary() *Library {
	return &Library{
		logger: logging.WithFields(logging.Fields{
			"component": "template_library",
		}),
	}
}

// Add appends a template. An empty ID gets a positional one; a duplicate
// ID is rejected because consensus counts distinct template IDs.
func (l *Library) Add(t *Template) error {
	if t == nil || t.Buffer == nil || t.Buffer.Len() == 0 {
		return fmt.Errorf("template has no audio")
	}

	if t.ID == "" {
		t.ID = fmt.Sprintf("template_%02d", len(l.templates)+1)
	}

	for _, existing := range l.templates {
		if existing.ID == t.ID {
			return fmt.Errorf("duplicate template id %q", t.ID)
		}
	}

	l.templates = append(l.templates, t)
	l.logger.Debug("template added", logging.Fields{
		"id":       t.ID,
		"duration": t.Duration(),
		"total":    len(l.templates),
	})

	return nil
}

// Templates returns the templates in insertion order. The returned slice is
// a copy; the templates themselves are shared.
func (l *Library) Templates() []*Template {
	out := make([]*Template, len(l.templates))
	copy(out, l.templates)
	return out
}

// Get returns the template with the given ID
func (l *Library) Get(id string) (*Template, bool) {
	for _, t := range l.templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of templates
func (l *Library) Len() int {
	return len(l.templates)
}
