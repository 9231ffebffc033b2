package detect

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/musselmanjoey/DingerStats/logging"
)

// Detector is the full detection pipeline: condition the signal, scan it
// with every template in parallel, reconcile the per-template candidates
// into consensus detections, and select the most game-like sequence.
type Detector struct {
	config      *Config
	conditioner *SignalConditioner
	matcher     *Matcher
	extractor   *PeakExtractor
	reconciler  *Reconciler
	selector    *StructuralFilter
	logger      logging.Logger
}

// NewDetector creates a detector. A nil config gets production defaults;
// an invalid config is rejected here rather than partway through a run.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Detector{
		config:      config,
		conditioner: NewSignalConditioner(&config.Filter),
		matcher:     NewMatcher(),
		extractor:   NewPeakExtractor(&config.Threshold, config.MinGapSeconds),
		reconciler:  NewReconciler(config.AgreementToleranceSeconds, config.MinSupportingTemplates),
		selector:    NewStructuralFilter(&config.Selection),
		logger: logging.WithFields(logging.Fields{
			"component": "detector",
		}),
	}, nil
}

// Config returns the configuration the detector was built with
func (d *Detector) Config() *Config {
	return d.config
}

// Conditioner returns the signal conditioner, so callers can run exemplar
// sources through the exact chain the detection signal will go through
// before building templates.
func (d *Detector) Conditioner() *SignalConditioner {
	return d.conditioner
}

// templateScan carries one template's scan outcome across the worker join
type templateScan struct {
	templateID string
	candidates []Candidate
	err        error
}

// Detect runs the full pipeline over a decoded recording. Per-template
// failures (template longer than the signal, degenerate trace) are logged
// and skipped; the run only fails when no template survives. An empty or
// short EventSequence is a valid result carried on the Incomplete flag.
func (d *Detector) Detect(ctx context.Context, signal *AudioBuffer, library *Library) (*EventSequence, error) {
	if signal == nil || signal.Len() == 0 {
		return nil, fmt.Errorf("signal is empty")
	}
	if library == nil || library.Len() == 0 {
		return nil, fmt.Errorf("template library is empty")
	}
	if signal.SampleRate() != d.config.SampleRate {
		return nil, fmt.Errorf("signal rate %d Hz does not match configured rate %d Hz",
			signal.SampleRate(), d.config.SampleRate)
	}

	start := time.Now()
	logger := d.logger.WithFields(logging.Fields{
		"function":  "Detect",
		"duration":  signal.Duration(),
		"templates": library.Len(),
	})
	logger.Debug("detection run starting")

	conditioned, err := d.conditioner.Condition(signal)
	if err != nil {
		return nil, fmt.Errorf("conditioning: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scans := d.scanTemplates(ctx, conditioned, library.Templates())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perTemplate := make(map[string][]Candidate, len(scans))
	failures := 0
	for _, scan := range scans {
		if scan.err != nil {
			failures++
			var insufficient *InsufficientDataError
			if errors.As(scan.err, &insufficient) {
				logger.Warn("template skipped, signal shorter than template", logging.Fields{
					"template":     insufficient.TemplateID,
					"signal_len":   insufficient.SignalLen,
					"template_len": insufficient.TemplateLen,
				})
			} else {
				logger.Warn("template scan failed", logging.Fields{
					"template": scan.templateID,
					"error":    scan.err.Error(),
				})
			}
			continue
		}
		perTemplate[scan.templateID] = scan.candidates
	}

	if len(perTemplate) == 0 {
		return nil, fmt.Errorf("no usable templates: all %d scans failed", failures)
	}

	detections := d.reconciler.Reconcile(perTemplate)
	sequence := d.selector.SelectSequence(detections)

	logger.Info("detection run complete", logging.Fields{
		"events":      len(sequence.Events),
		"strategy":    sequence.Strategy,
		"fitness":     sequence.Fitness,
		"incomplete":  sequence.Incomplete,
		"skipped":     failures,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return sequence, nil
}

// scanTemplates correlates and extracts candidates for every template,
// data-parallel across a bounded worker pool. The conditioned signal is
// shared read-only; each scan allocates its own trace.
func (d *Detector) scanTemplates(ctx context.Context, conditioned *AudioBuffer, templates []*Template) []templateScan {
	workers := d.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(templates) {
		workers = len(templates)
	}

	scans := make([]templateScan, len(templates))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				template := templates[idx]
				scans[idx].templateID = template.ID

				if err := ctx.Err(); err != nil {
					scans[idx].err = err
					continue
				}

				trace, err := d.matcher.Correlate(conditioned, template)
				if err != nil {
					scans[idx].err = err
					continue
				}

				candidates, err := d.extractor.ExtractCandidates(trace)
				if err != nil {
					scans[idx].err = err
					continue
				}
				scans[idx].candidates = candidates
			}
		}()
	}

	for idx := range templates {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return scans
}
