package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/musselmanjoey/DingerStats/logging"
)

// AudioData is decoded PCM ready for the detection engine: mono float64
// samples at the decoder's target rate.
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
}

// FileMetadata holds the audio properties ffprobe reports for a file
type FileMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
}

// DefaultDecoderConfig returns the decoder configuration matched to the
// detection engine: 22050 Hz mono, tools resolved from PATH. The timeout
// covers full-game recordings of several hours.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		TargetChannels:   1,
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          10 * time.Minute,
	}
}

// Validate rejects configurations the decoder cannot run with
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.TargetChannels <= 0 || c.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", c.TargetChannels)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", c.Timeout)
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	return nil
}

// Decoder turns audio files into engine-ready PCM using FFmpeg
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a decoder. A nil config gets the engine defaults.
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// Config returns the configuration the decoder was built with
func (d *Decoder) Config() *DecoderConfig {
	return d.config
}

// DecodeFile decodes a whole recording to mono PCM at the target rate
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	return d.decode(ctx, filename, 0, 0)
}

// DecodeClip decodes durationSeconds of audio starting offsetSeconds into
// the file. Used to cut labeled exemplar windows out of full recordings;
// the seek lands on the nearest container frame, which is well inside the
// padding the template search adds around an estimate.
func (d *Decoder) DecodeClip(ctx context.Context, filename string, offsetSeconds, durationSeconds float64) (*AudioData, error) {
	if offsetSeconds < 0 {
		return nil, fmt.Errorf("clip offset %.3f s is negative", offsetSeconds)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("clip duration %.3f s is not positive", durationSeconds)
	}
	return d.decode(ctx, filename, offsetSeconds, durationSeconds)
}

func (d *Decoder) decode(ctx context.Context, filename string, offsetSeconds, durationSeconds float64) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "decode",
		"filename": filename,
	})

	args := d.buildDecodeArgs(filename, offsetSeconds, durationSeconds)

	runCtx, cancel := d.scopedContext(ctx)
	defer cancel()

	logger.Debug("running ffmpeg", logging.Fields{
		"args": strings.Join(args, " "),
	})

	start := time.Now()
	output, err := exec.CommandContext(runCtx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	samplesPerChannel := len(samples) / d.config.TargetChannels
	duration := time.Duration(samplesPerChannel) * time.Second / time.Duration(d.config.TargetSampleRate)

	logger.Debug("decode complete", logging.Fields{
		"samples":     samplesPerChannel,
		"duration":    duration.Seconds(),
		"sample_rate": d.config.TargetSampleRate,
		"decode_ms":   time.Since(start).Milliseconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   d.config.TargetChannels,
		Duration:   duration,
		Source:     filename,
	}, nil
}

// buildDecodeArgs assembles the ffmpeg invocation: raw float64
// little-endian mono on stdout, resampled to the target rate. A zero
// duration decodes to the end of the file.
func (d *Decoder) buildDecodeArgs(filename string, offsetSeconds, durationSeconds float64) []string {
	args := []string{"-v", "error"}

	if offsetSeconds > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offsetSeconds))
	}
	args = append(args, "-i", filename)
	if durationSeconds > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", durationSeconds))
	}

	args = append(args,
		"-vn",
		"-map", "0:a:0?",
		"-f", "f64le",
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	)

	if filter := d.resampleFilter(); filter != "" {
		args = append(args, "-af", filter)
	}

	return append(args, "pipe:1")
}

func (d *Decoder) resampleFilter() string {
	switch d.config.ResampleQuality {
	case "fast":
		return "aresample=resampler=soxr:precision=16"
	case "medium":
		return "aresample=resampler=soxr:precision=20"
	case "high":
		return "aresample=resampler=soxr:precision=28"
	default:
		return ""
	}
}

// Probe reads the audio properties of a file with ffprobe without decoding it
func (d *Decoder) Probe(ctx context.Context, filename string) (*FileMetadata, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "Probe",
		"filename": filename,
	})

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}

	runCtx, cancel := d.scopedContext(ctx)
	defer cancel()

	output, err := exec.CommandContext(runCtx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	metadata, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}

	logger.Debug("probe complete", logging.Fields{
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
		"duration":    metadata.Duration,
	})

	return metadata, nil
}

// parseProbeOutput extracts audio metadata from ffprobe JSON. Sample rate
// and duration fields arrive as strings and are tolerated when missing;
// the decoder resamples to the target rate regardless.
func parseProbeOutput(jsonData []byte) (*FileMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 0
	}
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}
	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	return &FileMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// CheckTools verifies that ffmpeg and ffprobe respond at their configured
// paths. Called once at CLI startup, not per decode.
func (d *Decoder) CheckTools(ctx context.Context) error {
	for _, tool := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, tool, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", tool, err)
		}
	}
	return nil
}

func (d *Decoder) scopedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// bytesToFloat64 reinterprets ffmpeg's raw f64le stream as samples
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}
	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)
	for i := 0; i < sampleCount; i++ {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
