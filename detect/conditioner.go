package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
	"github.com/musselmanjoey/DingerStats/algorithms/filters"
	"github.com/musselmanjoey/DingerStats/algorithms/spectral"
	"github.com/musselmanjoey/DingerStats/algorithms/windowing"
	"github.com/musselmanjoey/DingerStats/logging"
)

// SignalConditioner suppresses speech-dominated energy and emphasizes the
// band where the chime lives before correlation. The conditioner holds no
// state between invocations; filter instances are built per call so
// concurrent Condition calls on different buffers are safe.
//
// Templates must be cut from audio that went through the same conditioning
// chain, otherwise the causal group delay shifts the correlation peak.
type SignalConditioner struct {
	config *FilterConfig
	stft   *spectral.STFT
	logger logging.Logger
}

// NewSignalConditioner creates a conditioner. A nil config gets the
// production chain (frequency emphasis only).
func NewSignalConditioner(config *FilterConfig) *SignalConditioner {
	if config == nil {
		def := DefaultFilterConfig()
		config = &def
	}

	return &SignalConditioner{
		config: config,
		stft:   spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "signal_conditioner",
		}),
	}
}

// Config returns the conditioning configuration in use
func (sc *SignalConditioner) Config() *FilterConfig {
	return sc.config
}

// Condition runs the enabled stages in fixed order (frequency emphasis,
// spectral subtraction, compression, gate) and renormalizes the peak to
// the configured target. The input buffer is never modified.
func (sc *SignalConditioner) Condition(signal *AudioBuffer) (*AudioBuffer, error) {
	if signal == nil || signal.Len() == 0 {
		return nil, fmt.Errorf("signal is empty")
	}

	start := time.Now()
	rate := signal.SampleRate()
	samples := signal.Samples()

	var err error
	if sc.config.EnableFrequencyEmphasis {
		samples, err = sc.frequencyEmphasis(samples, rate)
		if err != nil {
			return nil, fmt.Errorf("frequency emphasis: %w", err)
		}
	}

	if sc.config.EnableSpectralSubtraction {
		samples, err = sc.spectralSubtraction(samples, rate)
		if err != nil {
			return nil, fmt.Errorf("spectral subtraction: %w", err)
		}
	}

	if sc.config.EnableCompression {
		samples = sc.compress(samples)
	}

	if sc.config.EnableNoiseGate {
		samples = sc.gate(samples, rate)
	}

	samples = common.ScaleToPeak(samples, sc.config.TargetPeak)

	sc.logger.Debug("signal conditioning complete", logging.Fields{
		"samples":     len(samples),
		"duration_ms": time.Since(start).Milliseconds(),
		"frequency":   sc.config.EnableFrequencyEmphasis,
		"spectral":    sc.config.EnableSpectralSubtraction,
		"compression": sc.config.EnableCompression,
		"gate":        sc.config.EnableNoiseGate,
	})

	return NewAudioBuffer(samples, rate)
}

// frequencyEmphasis passes the chime band through a cascaded Butterworth
// band-pass (high-pass at the lower cutoff, low-pass at the upper).
func (sc *SignalConditioner) frequencyEmphasis(samples []float64, rate int) ([]float64, error) {
	band, err := filters.NewBandPass(rate, sc.config.HighPassCutoff, sc.config.LowPassCutoff,
		sc.config.FilterOrder)
	if err != nil {
		return nil, err
	}

	return band.ProcessBuffer(samples), nil
}

// spectralSubtraction estimates the stationary background from the leading
// frames and subtracts a scaled copy of that profile from every frame
// magnitude, flooring each bin at a fraction of its original value so the
// residual never inverts. Reconstruction reuses the original phase.
func (sc *SignalConditioner) spectralSubtraction(samples []float64, rate int) ([]float64, error) {
	window := windowing.NewHann(sc.config.WindowSize, false)

	result, err := sc.stft.ComputeWithWindow(samples, sc.config.WindowSize, sc.config.HopSize,
		rate, window)
	if err != nil {
		return nil, err
	}

	noiseFrames := int(sc.config.NoiseProfileSeconds * float64(rate) / float64(sc.config.HopSize))
	if noiseFrames < 1 {
		noiseFrames = 1
	}
	if noiseFrames > result.TimeFrames {
		noiseFrames = result.TimeFrames
	}

	profile := make([]float64, result.FreqBins)
	for t := 0; t < noiseFrames; t++ {
		for b, mag := range result.Magnitude[t] {
			profile[b] += mag
		}
	}
	for b := range profile {
		profile[b] /= float64(noiseFrames)
	}

	for t := 0; t < result.TimeFrames; t++ {
		for b, mag := range result.Magnitude[t] {
			cleaned := mag - sc.config.NoiseReduction*profile[b]
			floor := sc.config.SpectralFloor * mag
			if cleaned < floor {
				cleaned = floor
			}
			result.Magnitude[t][b] = cleaned
		}
	}

	out, err := sc.stft.Inverse(result, window)
	if err != nil {
		return nil, err
	}

	// Overlap-add covers whole frames only; keep the original tail so the
	// output length matches the input
	if len(out) < len(samples) {
		out = append(out, samples[len(out):]...)
	} else if len(out) > len(samples) {
		out = out[:len(samples)]
	}

	return out, nil
}

// compress maps samples above the threshold toward it, leaving quieter
// samples untouched: sign(x) * (threshold + (|x| - threshold) / ratio).
func (sc *SignalConditioner) compress(samples []float64) []float64 {
	threshold := sc.config.CompressThreshold
	ratio := sc.config.CompressRatio

	out := make([]float64, len(samples))
	for i, x := range samples {
		a := math.Abs(x)
		if a > threshold {
			out[i] = math.Copysign(threshold+(a-threshold)/ratio, x)
		} else {
			out[i] = x
		}
	}

	return out
}

// gate attenuates spans whose smoothed envelope sits below the threshold.
// The gate floor keeps quiet spans audible instead of hard-muting them, and
// the gain curve is smoothed over the attack window so span edges do not
// click.
func (sc *SignalConditioner) gate(samples []float64, rate int) []float64 {
	envWindow := int(0.01 * float64(rate)) // 10 ms envelope smoother
	if envWindow < 1 {
		envWindow = 1
	}

	envelope := make([]float64, len(samples))
	for i, x := range samples {
		envelope[i] = math.Abs(x)
	}
	envelope = common.CenteredMovingAverage(envelope, envWindow)

	gain := make([]float64, len(samples))
	for i := range gain {
		if envelope[i] < sc.config.GateThreshold {
			gain[i] = sc.config.GateFloor
		} else {
			gain[i] = 1.0
		}
	}

	attackWindow := int(sc.config.GateAttackSeconds * float64(rate))
	if attackWindow > 1 {
		gain = common.CenteredMovingAverage(gain, attackWindow)
	}

	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = samples[i] * gain[i]
	}

	return out
}
