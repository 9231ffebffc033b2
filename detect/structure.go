package detect

import (
	"math"
	"sort"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
	"github.com/musselmanjoey/DingerStats/logging"
)

// Names of the selection strategies carried on EventSequence.Strategy
const (
	// StrategyEvenlySpaced samples the time-sorted detections at evenly
	// spread indices
	StrategyEvenlySpaced = "evenly_spaced"

	// StrategyGreedySpacing walks detections in time order, accepting each
	// one far enough past the previous accept
	StrategyGreedySpacing = "greedy_spacing"

	// StrategyTopScore keeps the highest-scoring detections, re-sorted by
	// time
	StrategyTopScore = "top_score"

	// StrategyAll returns every detection unfiltered; used when there are
	// too few to select from
	StrategyAll = "all"
)

// EventSequence is the final ordered list of transition events for one
// recording. Events are strictly increasing in time and respect the
// configured minimum gap; Incomplete marks a sequence shorter than the
// expected count, which is a valid outcome (rain-shortened game, missed
// chimes), never an error.
type EventSequence struct {
	Events     []Detection `json:"events"`
	Strategy   string      `json:"strategy"`
	Fitness    float64     `json:"fitness"`
	Incomplete bool        `json:"incomplete"`
}

// Gaps returns the spacing between consecutive events in seconds
func (es *EventSequence) Gaps() []float64 {
	if len(es.Events) < 2 {
		return nil
	}

	gaps := make([]float64, len(es.Events)-1)
	for i := 1; i < len(es.Events); i++ {
		gaps[i-1] = es.Events[i].TimeSeconds - es.Events[i-1].TimeSeconds
	}
	return gaps
}

// StructuralFilter selects the subset of detections most consistent with
// the timing structure of a baseball game: a bounded number of transitions
// with roughly regular spacing. Each strategy proposes one sequence and a
// gap-statistics fitness picks the winner.
type StructuralFilter struct {
	config *SelectionConfig
	logger logging.Logger
}

// NewStructuralFilter creates a post-filter. A nil config gets the
// standard nine-inning constraints.
func NewStructuralFilter(config *SelectionConfig) *StructuralFilter {
	if config == nil {
		def := DefaultSelectionConfig()
		config = &def
	}

	return &StructuralFilter{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "structural_filter",
		}),
	}
}

// SelectSequence reduces consensus detections to the most game-like
// sequence. With fewer detections than the expected lower bound there is
// nothing to select between: every detection comes back with Incomplete
// set, never a fabricated fill-in.
func (sf *StructuralFilter) SelectSequence(detections []Detection) *EventSequence {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].TimeSeconds < sorted[b].TimeSeconds
	})

	expectedMin := sf.config.ExpectedCountRange[0]
	expectedMax := sf.config.ExpectedCountRange[1]

	if len(sorted) < expectedMin {
		sf.logger.Debug("too few detections to select from", logging.Fields{
			"detections": len(sorted),
			"expected":   expectedMin,
		})
		return &EventSequence{
			Events:     sorted,
			Strategy:   StrategyAll,
			Fitness:    sf.fitness(sorted),
			Incomplete: true,
		}
	}

	target := expectedMax
	if len(sorted) < target {
		target = len(sorted)
	}

	best := (*EventSequence)(nil)
	for _, strategy := range []string{StrategyEvenlySpaced, StrategyGreedySpacing, StrategyTopScore} {
		events := sf.enforceMinGap(sf.apply(strategy, sorted, target))
		candidate := &EventSequence{
			Events:     events,
			Strategy:   strategy,
			Fitness:    sf.fitness(events),
			Incomplete: len(events) < expectedMin,
		}

		sf.logger.Debug("strategy scored", logging.Fields{
			"strategy": strategy,
			"events":   len(events),
			"fitness":  candidate.Fitness,
		})

		if best == nil || candidate.Fitness > best.Fitness {
			best = candidate
		}
	}

	if gaps := best.Gaps(); len(gaps) > 0 {
		meanGap := common.Mean(gaps)
		if meanGap < sf.config.MinGapSeconds || meanGap > sf.config.MaxGapSeconds {
			sf.logger.Warn("mean event gap outside the realistic band", logging.Fields{
				"strategy": best.Strategy,
				"mean_gap": meanGap,
				"band_min": sf.config.MinGapSeconds,
				"band_max": sf.config.MaxGapSeconds,
			})
		}
	}

	return best
}

func (sf *StructuralFilter) apply(strategy string, sorted []Detection, target int) []Detection {
	switch strategy {
	case StrategyEvenlySpaced:
		return sf.evenlySpaced(sorted, target)
	case StrategyGreedySpacing:
		return sf.greedySpacing(sorted, target)
	case StrategyTopScore:
		return sf.topScore(sorted, target)
	default:
		return nil
	}
}

// evenlySpaced picks indices i*n/target across the time-sorted detections,
// spreading the picks over the whole recording
func (sf *StructuralFilter) evenlySpaced(sorted []Detection, target int) []Detection {
	events := make([]Detection, 0, target)
	for i := 0; i < target; i++ {
		events = append(events, sorted[i*len(sorted)/target])
	}
	return events
}

// greedySpacing accepts detections in time order whenever the gap since
// the last accept reaches the minimum, stopping at the target count
func (sf *StructuralFilter) greedySpacing(sorted []Detection, target int) []Detection {
	events := make([]Detection, 0, target)
	last := -sf.config.MinGapSeconds

	for _, d := range sorted {
		if d.TimeSeconds-last >= sf.config.MinGapSeconds {
			events = append(events, d)
			last = d.TimeSeconds
			if len(events) == target {
				break
			}
		}
	}

	return events
}

// topScore keeps the target highest-scoring detections re-sorted by time
func (sf *StructuralFilter) topScore(sorted []Detection, target int) []Detection {
	byScore := make([]Detection, len(sorted))
	copy(byScore, sorted)
	sort.Slice(byScore, func(a, b int) bool {
		if byScore[a].Score != byScore[b].Score {
			return byScore[a].Score > byScore[b].Score
		}
		return byScore[a].TimeSeconds < byScore[b].TimeSeconds
	})

	events := make([]Detection, target)
	copy(events, byScore[:target])
	sort.Slice(events, func(a, b int) bool {
		return events[a].TimeSeconds < events[b].TimeSeconds
	})

	return events
}

// enforceMinGap drops any event closer than the minimum gap to the last
// kept one, so every returned sequence honors the spacing invariant
// regardless of which strategy proposed it
func (sf *StructuralFilter) enforceMinGap(events []Detection) []Detection {
	if len(events) < 2 {
		return events
	}

	kept := make([]Detection, 0, len(events))
	kept = append(kept, events[0])
	for _, d := range events[1:] {
		if d.TimeSeconds-kept[len(kept)-1].TimeSeconds >= sf.config.MinGapSeconds {
			kept = append(kept, d)
		}
	}

	return kept
}

// fitness scores how game-like a sequence's spacing is: gaps averaging
// near the ideal with low spread score high. Sequences with fewer than two
// events have no gaps to judge and score zero.
func (sf *StructuralFilter) fitness(events []Detection) float64 {
	if len(events) < 2 {
		return 0
	}

	gaps := make([]float64, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps[i-1] = events[i].TimeSeconds - events[i-1].TimeSeconds
	}

	meanGap := common.Mean(gaps)
	stdGap := common.PopulationStdDev(gaps)

	return 1.0 / (math.Abs(meanGap-sf.config.IdealGapSeconds) + 1.0) / (stdGap + 1.0)
}
