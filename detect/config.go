package detect

import (
	"fmt"
)

// Config holds the full configuration for a detection run. Zero values are
// not usable; start from DefaultConfig and override.
type Config struct {
	// SampleRate is the rate every input buffer must carry, in Hz
	SampleRate int `json:"sample_rate"`

	// Filter configures the signal conditioning stages
	Filter FilterConfig `json:"filter"`

	// Threshold configures candidate extraction from correlation traces
	Threshold ThresholdConfig `json:"threshold"`

	// AgreementToleranceSeconds is the cross-template clustering window
	AgreementToleranceSeconds float64 `json:"agreement_tolerance_seconds"`

	// MinSupportingTemplates is the number of distinct templates that must
	// place a candidate inside one cluster before it becomes a detection
	MinSupportingTemplates int `json:"min_supporting_templates"`

	// MinGapSeconds is the refractory window between candidate peaks of a
	// single template scan
	MinGapSeconds float64 `json:"min_gap_seconds"`

	// Selection configures the structural post-filter
	Selection SelectionConfig `json:"selection"`

	// Workers bounds the parallel template scans; <= 0 means NumCPU
	Workers int `json:"workers"`
}

// FilterConfig configures the signal conditioner. Each stage toggles
// independently; stages always run in the order frequency emphasis,
// spectral subtraction, compression, gate.
type FilterConfig struct {
	// Frequency emphasis: band-pass around the chime fundamentals
	EnableFrequencyEmphasis bool    `json:"enable_frequency_emphasis"`
	HighPassCutoff          float64 `json:"high_pass_cutoff"` // Hz
	LowPassCutoff           float64 `json:"low_pass_cutoff"`  // Hz
	FilterOrder             int     `json:"filter_order"`     // must be even

	// Spectral subtraction of the stationary background estimate
	EnableSpectralSubtraction bool    `json:"enable_spectral_subtraction"`
	NoiseReduction            float64 `json:"noise_reduction"`       // profile scale, 0-1
	NoiseProfileSeconds       float64 `json:"noise_profile_seconds"` // leading span profiled
	SpectralFloor             float64 `json:"spectral_floor"`        // fraction of original magnitude
	WindowSize                int     `json:"window_size"`
	HopSize                   int     `json:"hop_size"`

	// Dynamic range compression above a fixed threshold
	EnableCompression bool    `json:"enable_compression"`
	CompressThreshold float64 `json:"compress_threshold"`
	CompressRatio     float64 `json:"compress_ratio"`

	// Adaptive gate attenuating low-envelope spans
	EnableNoiseGate    bool    `json:"enable_noise_gate"`
	GateThreshold      float64 `json:"gate_threshold"`       // envelope level that closes the gate
	GateFloor          float64 `json:"gate_floor"`           // closed-gate gain, never full mute
	GateAttackSeconds  float64 `json:"gate_attack_seconds"`  // gate curve smoothing span
	GateReleaseSeconds float64 `json:"gate_release_seconds"` // reserved for asymmetric smoothing

	// TargetPeak is the peak level after the final renormalization
	TargetPeak float64 `json:"target_peak"`
}

// ThresholdStrategy names one way of deriving a candidate threshold from a
// correlation trace
type ThresholdStrategy string

const (
	// ThresholdPercentile thresholds at a percentile of the score distribution
	ThresholdPercentile ThresholdStrategy = "percentile"

	// ThresholdMeanStdDev thresholds at mean + k standard deviations
	ThresholdMeanStdDev ThresholdStrategy = "mean_stddev"

	// ThresholdMaxFraction thresholds at a fraction of the trace maximum
	ThresholdMaxFraction ThresholdStrategy = "max_fraction"
)

// ThresholdConfig configures candidate thresholding. When several
// strategies are listed the per-strategy values are combined into one
// effective threshold.
type ThresholdConfig struct {
	Strategies  []ThresholdStrategy `json:"strategies"`
	Percentile  float64             `json:"percentile"`   // 0-100
	StdDevs     float64             `json:"std_devs"`     // k for mean_stddev
	MaxFraction float64             `json:"max_fraction"` // 0-1
	Combine     string              `json:"combine"`      // "max" (strict) or "min" (permissive)
}

// SelectionConfig configures the structural post-filter
type SelectionConfig struct {
	// ExpectedCountRange is [min, max] transitions a complete game carries
	ExpectedCountRange [2]int `json:"expected_count_range"`

	// MinGapSeconds and MaxGapSeconds bound realistic half-inning spacing
	MinGapSeconds float64 `json:"min_gap_seconds"`
	MaxGapSeconds float64 `json:"max_gap_seconds"`

	// IdealGapSeconds centers the gap-statistics fitness
	IdealGapSeconds float64 `json:"ideal_gap_seconds"`
}

// DefaultConfig returns the production configuration: frequency emphasis
// only, percentile thresholding, two-template consensus, nine expected
// transitions per game.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:                22050,
		Filter:                    DefaultFilterConfig(),
		Threshold:                 DefaultThresholdConfig(),
		AgreementToleranceSeconds: 5.0,
		MinSupportingTemplates:    2,
		MinGapSeconds:             60.0,
		Selection:                 DefaultSelectionConfig(),
		Workers:                   0, // NumCPU
	}
}

// DefaultFilterConfig returns the production conditioning chain. Only
// frequency emphasis is enabled; the other stages hurt matched-filter
// response on commentary audio more often than they help.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		EnableFrequencyEmphasis: true,
		HighPassCutoff:          800.0,
		LowPassCutoff:           10000.0,
		FilterOrder:             4,

		EnableSpectralSubtraction: false,
		NoiseReduction:            0.3,
		NoiseProfileSeconds:       2.0,
		SpectralFloor:             0.1,
		WindowSize:                2048,
		HopSize:                   512,

		EnableCompression: false,
		CompressThreshold: 0.3,
		CompressRatio:     4.0,

		EnableNoiseGate:    false,
		GateThreshold:      0.02,
		GateFloor:          0.1,
		GateAttackSeconds:  0.01,
		GateReleaseSeconds: 0.1,

		TargetPeak: 0.8,
	}
}

// DefaultThresholdConfig returns conservative percentile thresholding
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Strategies:  []ThresholdStrategy{ThresholdPercentile},
		Percentile:  99.7,
		StdDevs:     3.0,
		MaxFraction: 0.6,
		Combine:     "max",
	}
}

// DefaultSelectionConfig returns the structural constraints of a standard
// nine-inning broadcast
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		ExpectedCountRange: [2]int{9, 9},
		MinGapSeconds:      120.0,
		MaxGapSeconds:      400.0,
		IdealGapSeconds:    200.0,
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.AgreementToleranceSeconds <= 0 {
		return fmt.Errorf("agreement_tolerance_seconds must be positive, got %f",
			c.AgreementToleranceSeconds)
	}
	if c.MinSupportingTemplates < 1 {
		return fmt.Errorf("min_supporting_templates must be at least 1, got %d",
			c.MinSupportingTemplates)
	}
	if c.MinGapSeconds <= 0 {
		return fmt.Errorf("min_gap_seconds must be positive, got %f", c.MinGapSeconds)
	}

	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := c.Threshold.Validate(); err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	if err := c.Selection.Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}

	return nil
}

// Validate checks the conditioning stages for inconsistent parameters
func (fc *FilterConfig) Validate() error {
	if fc.EnableFrequencyEmphasis {
		if fc.HighPassCutoff <= 0 || fc.LowPassCutoff <= 0 {
			return fmt.Errorf("band cutoffs must be positive, got %f and %f",
				fc.HighPassCutoff, fc.LowPassCutoff)
		}
		if fc.HighPassCutoff >= fc.LowPassCutoff {
			return fmt.Errorf("high-pass cutoff %f must sit below low-pass cutoff %f",
				fc.HighPassCutoff, fc.LowPassCutoff)
		}
		if fc.FilterOrder <= 0 || fc.FilterOrder%2 != 0 {
			return fmt.Errorf("filter_order must be a positive even number, got %d", fc.FilterOrder)
		}
	}

	if fc.EnableSpectralSubtraction {
		if fc.WindowSize <= 0 || fc.HopSize <= 0 {
			return fmt.Errorf("window_size and hop_size must be positive, got %d and %d",
				fc.WindowSize, fc.HopSize)
		}
		if fc.HopSize > fc.WindowSize {
			return fmt.Errorf("hop_size %d cannot exceed window_size %d", fc.HopSize, fc.WindowSize)
		}
		if fc.NoiseReduction < 0 || fc.NoiseReduction > 1 {
			return fmt.Errorf("noise_reduction must be in [0, 1], got %f", fc.NoiseReduction)
		}
		if fc.SpectralFloor < 0 || fc.SpectralFloor > 1 {
			return fmt.Errorf("spectral_floor must be in [0, 1], got %f", fc.SpectralFloor)
		}
		if fc.NoiseProfileSeconds <= 0 {
			return fmt.Errorf("noise_profile_seconds must be positive, got %f", fc.NoiseProfileSeconds)
		}
	}

	if fc.EnableCompression {
		if fc.CompressThreshold <= 0 {
			return fmt.Errorf("compress_threshold must be positive, got %f", fc.CompressThreshold)
		}
		if fc.CompressRatio < 1 {
			return fmt.Errorf("compress_ratio must be at least 1, got %f", fc.CompressRatio)
		}
	}

	if fc.EnableNoiseGate {
		if fc.GateThreshold <= 0 {
			return fmt.Errorf("gate_threshold must be positive, got %f", fc.GateThreshold)
		}
		if fc.GateFloor < 0 || fc.GateFloor > 1 {
			return fmt.Errorf("gate_floor must be in [0, 1], got %f", fc.GateFloor)
		}
		if fc.GateAttackSeconds <= 0 || fc.GateReleaseSeconds <= 0 {
			return fmt.Errorf("gate attack and release must be positive, got %f and %f",
				fc.GateAttackSeconds, fc.GateReleaseSeconds)
		}
	}

	if fc.TargetPeak <= 0 || fc.TargetPeak > 1 {
		return fmt.Errorf("target_peak must be in (0, 1], got %f", fc.TargetPeak)
	}

	return nil
}

// Validate checks that every listed strategy has a usable parameter
func (tc *ThresholdConfig) Validate() error {
	if len(tc.Strategies) == 0 {
		return fmt.Errorf("at least one threshold strategy is required")
	}

	for _, s := range tc.Strategies {
		switch s {
		case ThresholdPercentile:
			if tc.Percentile <= 0 || tc.Percentile >= 100 {
				return fmt.Errorf("percentile must be in (0, 100), got %f", tc.Percentile)
			}
		case ThresholdMeanStdDev:
			if tc.StdDevs <= 0 {
				return fmt.Errorf("std_devs must be positive, got %f", tc.StdDevs)
			}
		case ThresholdMaxFraction:
			if tc.MaxFraction <= 0 || tc.MaxFraction > 1 {
				return fmt.Errorf("max_fraction must be in (0, 1], got %f", tc.MaxFraction)
			}
		default:
			return fmt.Errorf("unknown threshold strategy %q", s)
		}
	}

	switch tc.Combine {
	case "", "max", "min":
	default:
		return fmt.Errorf("combine must be \"max\" or \"min\", got %q", tc.Combine)
	}

	return nil
}

// Validate checks the structural constraints for consistency
func (sc *SelectionConfig) Validate() error {
	if sc.ExpectedCountRange[0] < 1 {
		return fmt.Errorf("expected_count_range lower bound must be at least 1, got %d",
			sc.ExpectedCountRange[0])
	}
	if sc.ExpectedCountRange[1] < sc.ExpectedCountRange[0] {
		return fmt.Errorf("expected_count_range [%d, %d] is inverted",
			sc.ExpectedCountRange[0], sc.ExpectedCountRange[1])
	}
	if sc.MinGapSeconds <= 0 {
		return fmt.Errorf("min_gap_seconds must be positive, got %f", sc.MinGapSeconds)
	}
	if sc.MaxGapSeconds < sc.MinGapSeconds {
		return fmt.Errorf("gap band [%f, %f] is inverted", sc.MinGapSeconds, sc.MaxGapSeconds)
	}
	if sc.IdealGapSeconds < sc.MinGapSeconds || sc.IdealGapSeconds > sc.MaxGapSeconds {
		return fmt.Errorf("ideal_gap_seconds %f must sit inside the gap band [%f, %f]",
			sc.IdealGapSeconds, sc.MinGapSeconds, sc.MaxGapSeconds)
	}

	return nil
}
