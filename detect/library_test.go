package detect

import (
	"errors"
	"math"
	"testing"
)

// alternatingBurst returns a burst that flips between a low and a high
// tone every quarter second, giving the spectral centroid something to
// move over
func alternatingBurst(t *testing.T, rate int, seconds float64) []float64 {
	t.Helper()

	n := int(seconds * float64(rate))
	quarter := rate / 4
	out := make([]float64, n)
	for i := range out {
		tm := float64(i) / float64(rate)
		freq := 800.0
		if (i/quarter)%2 == 1 {
			freq = 4000.0
		}
		out[i] = 0.3 * math.Sin(2*math.Pi*freq*tm)
	}

	return out
}

func TestBuildTemplateFindsLoudestWindow(t *testing.T) {
	const rate = 22050

	samples := synthNoise(t, rate, 10.0, 11)
	for i := range samples {
		samples[i] *= 0.02
	}
	plant(t, samples, synthChime(t, rate, 0.5), rate, 5.3, 0.6)

	tmpl, err := BuildTemplate(mustBuffer(t, samples, rate), DefaultTemplateSpec("exemplar", 5.0))
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}

	// The search window is [4.0, 8.0]; any 2 s position fully containing
	// the chime at [5.3, 5.8] beats every partial one
	resolved := tmpl.SourceOffsetSeconds
	if resolved < 3.95 || resolved > 5.35 {
		t.Errorf("resolved offset %f does not fully contain the chime at 5.3s", resolved)
	}
	if math.Abs(tmpl.Duration()-2.0) > 0.01 {
		t.Errorf("template duration = %f, want 2.0", tmpl.Duration())
	}
	if tmpl.ID != "exemplar" || tmpl.SourceLabel != "exemplar" {
		t.Errorf("template identity = %q/%q, want exemplar", tmpl.ID, tmpl.SourceLabel)
	}
}

func TestBuildTemplatePeakMetric(t *testing.T) {
	const rate = 22050

	samples := synthNoise(t, rate, 10.0, 12)
	for i := range samples {
		samples[i] *= 0.02
	}
	plant(t, samples, []float64{5.0}, rate, 6.1, 1.0)

	spec := DefaultTemplateSpec("spiked", 5.0)
	spec.Metric = QualityPeakAmplitude

	tmpl, err := BuildTemplate(mustBuffer(t, samples, rate), spec)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}

	resolved := tmpl.SourceOffsetSeconds
	if resolved > 6.1 || resolved+2.0 < 6.1 {
		t.Errorf("peak metric missed the spike at 6.1s, window starts at %f", resolved)
	}
}

func TestBuildTemplateCentroidMetric(t *testing.T) {
	const rate = 22050

	n := 10 * rate
	samples := make([]float64, n)
	for i := range samples {
		tm := float64(i) / float64(rate)
		samples[i] = 0.3 * math.Sin(2*math.Pi*1000.0*tm)
	}
	burst := alternatingBurst(t, rate, 1.0)
	// Replace, not mix, so the burst span truly alternates
	start := int(5.5 * rate)
	copy(samples[start:start+len(burst)], burst)

	spec := DefaultTemplateSpec("alternating", 5.2)
	spec.Metric = QualityCentroidSpread

	tmpl, err := BuildTemplate(mustBuffer(t, samples, rate), spec)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}

	// The chosen window must overlap the alternating burst at [5.5, 6.5]
	// by at least half the burst; a steady-tone window has near-zero
	// centroid spread
	resolved := tmpl.SourceOffsetSeconds
	overlap := math.Min(resolved+2.0, 6.5) - math.Max(resolved, 5.5)
	if overlap < 0.5 {
		t.Errorf("centroid metric window [%f, %f] barely overlaps the burst", resolved, resolved+2.0)
	}
}

func TestBuildTemplateSilenceIsQualityError(t *testing.T) {
	const rate = 22050

	tmpl, err := BuildTemplate(mustBuffer(t, make([]float64, 10*rate), rate),
		DefaultTemplateSpec("silent", 5.0))
	if err == nil {
		t.Fatalf("expected quality error, got template at %f", tmpl.SourceOffsetSeconds)
	}

	var qualityErr *TemplateQualityError
	if !errors.As(err, &qualityErr) {
		t.Fatalf("error is %T, want *TemplateQualityError", err)
	}
	if qualityErr.Label != "silent" || qualityErr.Metric != QualityRMSEnergy {
		t.Errorf("error fields = %q/%q", qualityErr.Label, qualityErr.Metric)
	}
}

func TestBuildTemplateConstantSignalIsQualityError(t *testing.T) {
	const rate = 22050

	samples := make([]float64, 10*rate)
	for i := range samples {
		samples[i] = 0.5
	}

	_, err := BuildTemplate(mustBuffer(t, samples, rate), DefaultTemplateSpec("dc", 5.0))

	var qualityErr *TemplateQualityError
	if !errors.As(err, &qualityErr) {
		t.Fatalf("flat RMS across the window should be a quality error, got %v", err)
	}
}

func TestBuildTemplateEstimatePastEnd(t *testing.T) {
	const rate = 22050

	_, err := BuildTemplate(mustBuffer(t, make([]float64, rate), rate),
		DefaultTemplateSpec("late", 30.0))
	if err == nil {
		t.Error("expected error for estimate past the end of the source")
	}
	var qualityErr *TemplateQualityError
	if errors.As(err, &qualityErr) {
		t.Error("out-of-range estimate is not a quality problem")
	}
}

func TestBuildTemplateClampsWindowAtStart(t *testing.T) {
	const rate = 22050

	samples := synthNoise(t, rate, 8.0, 13)
	for i := range samples {
		samples[i] *= 0.02
	}
	plant(t, samples, synthChime(t, rate, 0.5), rate, 0.4, 0.6)

	tmpl, err := BuildTemplate(mustBuffer(t, samples, rate), DefaultTemplateSpec("early", 0.2))
	if err != nil {
		t.Fatalf("BuildTemplate near the start: %v", err)
	}
	if tmpl.SourceOffsetSeconds > 1.0 {
		t.Errorf("resolved offset %f, want a window near the clip start", tmpl.SourceOffsetSeconds)
	}
}

func TestBuildTemplateUnknownMetric(t *testing.T) {
	const rate = 22050

	spec := DefaultTemplateSpec("odd", 5.0)
	spec.Metric = "loudness"

	if _, err := BuildTemplate(mustBuffer(t, synthNoise(t, rate, 10.0, 4), rate), spec); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestAverageTemplatesTrimsAndAverages(t *testing.T) {
	a := newTestTemplate(t, "a", []float64{1, 1, 1, 1}, 22050)
	b := newTestTemplate(t, "b", []float64{3, 3, 3}, 22050)

	avg, err := AverageTemplates("reference", a, b)
	if err != nil {
		t.Fatalf("AverageTemplates: %v", err)
	}

	if avg.Buffer.Len() != 3 {
		t.Fatalf("averaged length = %d, want shortest common length 3", avg.Buffer.Len())
	}
	for i, v := range avg.Buffer.Samples() {
		if math.Abs(v-2.0) > 1e-12 {
			t.Errorf("sample %d = %f, want 2.0", i, v)
		}
	}
	if avg.ID != "reference" {
		t.Errorf("averaged template ID = %q", avg.ID)
	}
}

func TestAverageTemplatesRejectsMismatchedRates(t *testing.T) {
	a := newTestTemplate(t, "a", []float64{1, 1}, 22050)
	b := newTestTemplate(t, "b", []float64{1, 1}, 44100)

	if _, err := AverageTemplates("bad", a, b); err == nil {
		t.Error("expected error for mismatched sample rates")
	}
	if _, err := AverageTemplates("empty"); err == nil {
		t.Error("expected error for no templates")
	}
}

func TestLibraryAddOrderAndLookup(t *testing.T) {
	lib := NewLibrary()

	if err := lib.Add(newTestTemplate(t, "a", []float64{1, 2}, 22050)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	unnamed := newTestTemplate(t, "", []float64{3, 4}, 22050)
	if err := lib.Add(unnamed); err != nil {
		t.Fatalf("Add unnamed: %v", err)
	}
	if err := lib.Add(newTestTemplate(t, "c", []float64{5, 6}, 22050)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if lib.Len() != 3 {
		t.Fatalf("library len = %d, want 3", lib.Len())
	}

	templates := lib.Templates()
	if templates[0].ID != "a" || templates[1].ID != "template_02" || templates[2].ID != "c" {
		t.Errorf("insertion order lost: %q, %q, %q", templates[0].ID, templates[1].ID, templates[2].ID)
	}

	if err := lib.Add(newTestTemplate(t, "a", []float64{7, 8}, 22050)); err == nil {
		t.Error("expected error for duplicate template id")
	}

	if _, ok := lib.Get("c"); !ok {
		t.Error("Get(c) should find the template")
	}
	if _, ok := lib.Get("missing"); ok {
		t.Error("Get(missing) should not find a template")
	}
}

func TestLibraryRejectsEmptyTemplate(t *testing.T) {
	lib := NewLibrary()

	if err := lib.Add(nil); err == nil {
		t.Error("expected error for nil template")
	}
	if err := lib.Add(&Template{ID: "hollow"}); err == nil {
		t.Error("expected error for template without audio")
	}
}
