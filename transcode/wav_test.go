package transcode

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	rate := 22050
	n := rate / 2
	want := make([]float64, n)
	for i := range want {
		tm := float64(i) / float64(rate)
		want[i] = 0.8 * math.Sin(2*math.Pi*440.0*tm)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAV(path, want, rate); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if got.SampleRate != rate {
		t.Errorf("sample rate: got %d, want %d", got.SampleRate, rate)
	}
	if got.Channels != 1 {
		t.Errorf("channels: got %d, want 1", got.Channels)
	}
	if len(got.PCM) != n {
		t.Fatalf("sample count: got %d, want %d", len(got.PCM), n)
	}

	// 16-bit quantization bounds the round-trip error near 1/32768
	for i := range want {
		if diff := math.Abs(got.PCM[i] - want[i]); diff > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, got.PCM[i], want[i], diff)
		}
	}

	wantDur := float64(n) / float64(rate)
	if math.Abs(got.Duration.Seconds()-wantDur) > 1e-3 {
		t.Errorf("duration: got %v s, want %v s", got.Duration.Seconds(), wantDur)
	}
}

func TestWriteWAVClampsOutOfRange(t *testing.T) {
	samples := []float64{1.5, -2.0, 0.0}
	path := filepath.Join(t.TempDir(), "clipped.wav")
	if err := WriteWAV(path, samples, 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if got.PCM[0] < 0.999 || got.PCM[0] > 1.0 {
		t.Errorf("over-range sample should clamp to full scale, got %v", got.PCM[0])
	}
	if got.PCM[1] > -0.999 {
		t.Errorf("under-range sample should clamp to negative full scale, got %v", got.PCM[1])
	}
	if math.Abs(got.PCM[2]) > 1e-4 {
		t.Errorf("zero sample should stay near zero, got %v", got.PCM[2])
	}
}

func TestWriteWAVValidation(t *testing.T) {
	dir := t.TempDir()

	if err := WriteWAV(filepath.Join(dir, "empty.wav"), nil, 8000); err == nil {
		t.Error("expected error for empty samples")
	}
	if err := WriteWAV(filepath.Join(dir, "rate.wav"), []float64{0.1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestReadWAVRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("this is not a RIFF container"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadWAV(path); err == nil {
		t.Error("expected error for non-WAV bytes")
	}
	if _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}
