package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/musselmanjoey/DingerStats/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

func TestBytesToFloat64RoundTrip(t *testing.T) {
	want := []float64{0.0, 1.0, -1.0, 0.25, -0.75, math.Pi}

	data := make([]byte, len(want)*8)
	for i, v := range want {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}

	got := bytesToFloat64(data)
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBytesToFloat64TruncatesPartialSample(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(0.5))
	data = append(data, 0xAB, 0xCD, 0xEF)

	got := bytesToFloat64(data)
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
	if got[0] != 0.5 {
		t.Errorf("sample 0: got %v, want 0.5", got[0])
	}

	if out := bytesToFloat64(nil); out != nil {
		t.Errorf("nil input: got %v, want nil", out)
	}
	if out := bytesToFloat64([]byte{0x01, 0x02}); out != nil {
		t.Errorf("short input: got %v, want nil", out)
	}
}

func TestBuildDecodeArgsFullFile(t *testing.T) {
	d := NewDecoder(nil)
	args := d.buildDecodeArgs("game.m4a", 0, 0)

	if slices.Contains(args, "-ss") {
		t.Errorf("full-file decode should not seek: %v", args)
	}
	if slices.Contains(args, "-t") {
		t.Errorf("full-file decode should not limit duration: %v", args)
	}

	for _, want := range [][2]string{
		{"-i", "game.m4a"},
		{"-f", "f64le"},
		{"-ac", "1"},
		{"-ar", "22050"},
		{"-af", "aresample=resampler=soxr:precision=20"},
	} {
		i := slices.Index(args, want[0])
		if i < 0 || i+1 >= len(args) {
			t.Fatalf("args missing %q: %v", want[0], args)
		}
		if args[i+1] != want[1] {
			t.Errorf("%s: got %q, want %q", want[0], args[i+1], want[1])
		}
	}

	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg: got %q, want pipe:1", args[len(args)-1])
	}
}

func TestBuildDecodeArgsClipSeeksBeforeInput(t *testing.T) {
	d := NewDecoder(nil)
	args := d.buildDecodeArgs("game.m4a", 12.5, 3.0)

	ss := slices.Index(args, "-ss")
	in := slices.Index(args, "-i")
	dur := slices.Index(args, "-t")
	if ss < 0 || in < 0 || dur < 0 {
		t.Fatalf("clip args missing seek or duration: %v", args)
	}
	if ss > in {
		t.Errorf("-ss must precede -i for fast seek: %v", args)
	}
	if args[ss+1] != "12.500" {
		t.Errorf("seek offset: got %q, want 12.500", args[ss+1])
	}
	if args[dur+1] != "3.000" {
		t.Errorf("clip duration: got %q, want 3.000", args[dur+1])
	}
}

func TestBuildDecodeArgsQualityOff(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.ResampleQuality = ""
	d := NewDecoder(cfg)

	if args := d.buildDecodeArgs("x.wav", 0, 0); slices.Contains(args, "-af") {
		t.Errorf("empty quality should skip the resample filter: %v", args)
	}
}

func TestParseProbeOutput(t *testing.T) {
	probeJSON := []byte(`{
		"streams": [
			{
				"codec_type": "audio",
				"codec_name": "aac",
				"codec_long_name": "AAC (Advanced Audio Coding)",
				"sample_rate": "44100",
				"channels": 2,
				"duration": "11543.254000",
				"bit_rate": "129340"
			}
		]
	}`)

	meta, err := parseProbeOutput(probeJSON)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if meta.SampleRate != 44100 {
		t.Errorf("sample rate: got %d, want 44100", meta.SampleRate)
	}
	if meta.Channels != 2 {
		t.Errorf("channels: got %d, want 2", meta.Channels)
	}
	if meta.Codec != "aac" {
		t.Errorf("codec: got %q, want aac", meta.Codec)
	}
	if math.Abs(meta.Duration-11543.254) > 1e-9 {
		t.Errorf("duration: got %v, want 11543.254", meta.Duration)
	}
	if meta.Bitrate != 129340 {
		t.Errorf("bitrate: got %d, want 129340", meta.Bitrate)
	}
	if meta.Format != "AAC (Advanced Audio Coding)" {
		t.Errorf("format: got %q", meta.Format)
	}
}

func TestParseProbeOutputToleratesMissingFields(t *testing.T) {
	probeJSON := []byte(`{"streams": [{"codec_type": "audio", "codec_name": "pcm_s16le", "channels": 1}]}`)

	meta, err := parseProbeOutput(probeJSON)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if meta.SampleRate != 0 || meta.Duration != 0 || meta.Bitrate != 0 {
		t.Errorf("missing fields should parse as zero: %+v", meta)
	}
}

func TestParseProbeOutputErrors(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"invalid JSON", `{"streams": [`},
		{"no streams", `{"streams": []}`},
		{"video stream", `{"streams": [{"codec_type": "video", "codec_name": "h264", "channels": 0}]}`},
		{"bad channels", `{"streams": [{"codec_type": "audio", "codec_name": "aac", "channels": 12}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseProbeOutput([]byte(tc.json)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestDecoderConfigValidate(t *testing.T) {
	if err := DefaultDecoderConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*DecoderConfig)
	}{
		{"zero sample rate", func(c *DecoderConfig) { c.TargetSampleRate = 0 }},
		{"zero channels", func(c *DecoderConfig) { c.TargetChannels = 0 }},
		{"too many channels", func(c *DecoderConfig) { c.TargetChannels = 9 }},
		{"zero timeout", func(c *DecoderConfig) { c.Timeout = 0 }},
		{"unknown quality", func(c *DecoderConfig) { c.ResampleQuality = "ultra" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDecoderConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestNewDecoderNilConfigUsesDefaults(t *testing.T) {
	d := NewDecoder(nil)

	cfg := d.Config()
	if cfg == nil {
		t.Fatal("nil config after construction")
	}
	if cfg.TargetSampleRate != 22050 || cfg.TargetChannels != 1 {
		t.Errorf("defaults: got %d Hz %d ch, want 22050 Hz 1 ch", cfg.TargetSampleRate, cfg.TargetChannels)
	}
	if cfg.FFmpegPath != "ffmpeg" || cfg.FFprobePath != "ffprobe" {
		t.Errorf("tool paths: got %q, %q", cfg.FFmpegPath, cfg.FFprobePath)
	}
	if cfg.Timeout != 10*time.Minute {
		t.Errorf("timeout: got %v, want 10m", cfg.Timeout)
	}
}

func TestDecodeClipRejectsBadWindow(t *testing.T) {
	d := NewDecoder(nil)
	ctx := context.Background()

	if _, err := d.DecodeClip(ctx, "game.m4a", -1.0, 2.0); err == nil {
		t.Error("negative offset should fail before running ffmpeg")
	}
	if _, err := d.DecodeClip(ctx, "game.m4a", 5.0, 0); err == nil {
		t.Error("zero duration should fail before running ffmpeg")
	}
	if _, err := d.DecodeClip(ctx, "game.m4a", 5.0, -3.0); err != nil &&
		!strings.Contains(err.Error(), "duration") {
		t.Errorf("negative duration error should mention duration: %v", err)
	}
}
