package detect

import (
	"math"
	"testing"

	"github.com/musselmanjoey/DingerStats/algorithms/common"
)

// toneAmplitude projects a span of samples onto a single frequency and
// returns the component amplitude. The span should hold a whole number of
// cycles to avoid leakage.
func toneAmplitude(t *testing.T, samples []float64, rate int, freq, fromSeconds, toSeconds float64) float64 {
	t.Helper()

	from := int(fromSeconds * float64(rate))
	to := int(toSeconds * float64(rate))
	seg := samples[from:to]

	var re, im float64
	for i, v := range seg {
		phase := 2.0 * math.Pi * freq * float64(i) / float64(rate)
		re += v * math.Cos(phase)
		im += v * math.Sin(phase)
	}

	return 2.0 * math.Hypot(re, im) / float64(len(seg))
}

func frequencyOnlyConfig() FilterConfig {
	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = true
	cfg.EnableSpectralSubtraction = false
	cfg.EnableCompression = false
	cfg.EnableNoiseGate = false
	return cfg
}

func TestConditionFrequencyEmphasisAttenuatesOutOfBand(t *testing.T) {
	const rate = 22050

	n := rate // 1 second
	samples := make([]float64, n)
	for i := range samples {
		tm := float64(i) / float64(rate)
		samples[i] = 0.4*math.Sin(2*math.Pi*100.0*tm) + 0.4*math.Sin(2*math.Pi*2000.0*tm)
	}

	cfg := frequencyOnlyConfig()
	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}

	// Project over [0.4, 0.9]s, past the filter transient, whole cycles of
	// both tones
	out := conditioned.Samples()
	low := toneAmplitude(t, out, rate, 100.0, 0.4, 0.9)
	high := toneAmplitude(t, out, rate, 2000.0, 0.4, 0.9)

	if high <= 0 {
		t.Fatal("in-band tone vanished")
	}
	ratio := low / high
	if ratio > 0.05 {
		t.Errorf("100 Hz tone survived band-pass: low/high amplitude ratio = %f, want < 0.05", ratio)
	}
}

func TestConditionCompressionMapsAboveThreshold(t *testing.T) {
	const rate = 22050

	// Memoryless stage: plateau samples give exact expectations
	samples := make([]float64, 200)
	for i := range samples {
		if i < 100 {
			samples[i] = 0.2
		} else {
			samples[i] = 1.0
		}
	}

	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = false
	cfg.EnableCompression = true

	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}

	out := conditioned.Samples()

	// 1.0 compresses to 0.3 + 0.7/4 = 0.475; 0.2 stays; the final
	// renormalization preserves the ratio
	wantRatio := 0.2 / 0.475
	gotRatio := out[0] / out[199]
	if math.Abs(gotRatio-wantRatio) > 1e-9 {
		t.Errorf("compressed ratio = %f, want %f", gotRatio, wantRatio)
	}
	if math.Abs(out[199]-0.8) > 1e-9 {
		t.Errorf("peak after renormalization = %f, want 0.8", out[199])
	}
}

func TestConditionGateAttenuatesQuietSpans(t *testing.T) {
	const rate = 22050

	n := 2 * rate
	samples := make([]float64, n)
	for i := range samples {
		tm := float64(i) / float64(rate)
		amp := 0.5
		if i >= rate {
			amp = 0.005 // envelope well under the 0.02 gate threshold
		}
		samples[i] = amp * math.Sin(2*math.Pi*1000.0*tm)
	}

	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = false
	cfg.EnableNoiseGate = true

	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}
	out := conditioned.Samples()

	inRatio := spanRMS(t, samples, rate, 1.2, 1.9) / spanRMS(t, samples, rate, 0.2, 0.9)
	outRatio := spanRMS(t, out, rate, 1.2, 1.9) / spanRMS(t, out, rate, 0.2, 0.9)

	if outRatio > inRatio*0.2 {
		t.Errorf("quiet span not gated: quiet/loud RMS ratio %f in, %f out", inRatio, outRatio)
	}
	if outRatio < inRatio*0.01 {
		t.Errorf("gate muted the quiet span entirely: ratio %f, floor should keep ~10%%", outRatio)
	}
}

func TestConditionSpectralSubtractionSuppressesStationaryTone(t *testing.T) {
	const rate = 22050

	n := 6 * rate
	samples := make([]float64, n)
	for i := range samples {
		tm := float64(i) / float64(rate)
		samples[i] = 0.3 * math.Sin(2*math.Pi*500.0*tm)
	}
	burst := make([]float64, rate/5) // 0.2 s at 3 kHz
	for i := range burst {
		tm := float64(i) / float64(rate)
		burst[i] = 0.3 * math.Sin(2*math.Pi*3000.0*tm)
	}
	plant(t, samples, burst, rate, 4.0, 1.0)

	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = false
	cfg.EnableSpectralSubtraction = true
	cfg.NoiseReduction = 0.5 // standalone strength

	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}
	out := conditioned.Samples()

	// The stationary 500 Hz tone dominates the noise profile and gets
	// subtracted; the transient burst's bins are absent from the profile
	beforeRatio := spanRMS(t, samples, rate, 3.0, 3.8) / spanRMS(t, samples, rate, 4.0, 4.2)
	afterRatio := spanRMS(t, out, rate, 3.0, 3.8) / spanRMS(t, out, rate, 4.0, 4.2)

	if afterRatio > beforeRatio*0.75 {
		t.Errorf("stationary tone not suppressed relative to burst: ratio %f before, %f after",
			beforeRatio, afterRatio)
	}
}

func TestConditionRenormalizesPeak(t *testing.T) {
	const rate = 22050

	samples := synthNoise(t, rate, 2.0, 7)
	plant(t, samples, synthChime(t, rate, 0.5), rate, 1.0, 0.5)

	cfg := frequencyOnlyConfig()
	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}

	peak := common.PeakAmplitude(conditioned.Samples())
	if math.Abs(peak-0.8) > 1e-9 {
		t.Errorf("peak after conditioning = %f, want 0.8", peak)
	}
}

func TestConditionAllStagesOnSilence(t *testing.T) {
	const rate = 22050

	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = true
	cfg.EnableSpectralSubtraction = true
	cfg.EnableCompression = true
	cfg.EnableNoiseGate = true

	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, make([]float64, 5*rate), rate))
	if err != nil {
		t.Fatalf("Condition on silence: %v", err)
	}

	if peak := common.PeakAmplitude(conditioned.Samples()); peak > 1e-12 {
		t.Errorf("silence came out non-silent, peak = %g", peak)
	}
	if conditioned.Len() != 5*rate {
		t.Errorf("length changed: %d in, %d out", 5*rate, conditioned.Len())
	}
}

func TestConditionAllStagesOffOnlyRenormalizes(t *testing.T) {
	const rate = 22050

	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*440.0*float64(i)/float64(rate))
	}

	cfg := DefaultFilterConfig()
	cfg.EnableFrequencyEmphasis = false

	conditioned, err := NewSignalConditioner(&cfg).Condition(mustBuffer(t, samples, rate))
	if err != nil {
		t.Fatalf("Condition: %v", err)
	}

	out := conditioned.Samples()
	scale := 0.8 / common.PeakAmplitude(samples)
	for i := range samples {
		if math.Abs(out[i]-samples[i]*scale) > 1e-9 {
			t.Fatalf("sample %d: got %f, want %f", i, out[i], samples[i]*scale)
		}
	}
}

func TestConditionDoesNotMutateInput(t *testing.T) {
	const rate = 22050

	samples := synthNoise(t, rate, 1.0, 3)
	buf := mustBuffer(t, samples, rate)

	original := make([]float64, buf.Len())
	copy(original, buf.Samples())

	cfg := frequencyOnlyConfig()
	if _, err := NewSignalConditioner(&cfg).Condition(buf); err != nil {
		t.Fatalf("Condition: %v", err)
	}

	for i, v := range buf.Samples() {
		if v != original[i] {
			t.Fatalf("input buffer mutated at sample %d", i)
		}
	}
}

func TestConditionRejectsEmptySignal(t *testing.T) {
	cfg := frequencyOnlyConfig()
	sc := NewSignalConditioner(&cfg)

	if _, err := sc.Condition(nil); err == nil {
		t.Error("expected error for nil signal")
	}
}
