package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/musselmanjoey/DingerStats/logging"
)

// VideoInfo holds the metadata yt-dlp reports for a single video
type VideoInfo struct {
	VideoID    string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"`
	WebpageURL string  `json:"webpage_url"`
}

// FetcherConfig holds fetcher configuration
type FetcherConfig struct {
	YtdlpPath string        `json:"ytdlp_path"`
	OutputDir string        `json:"output_dir"`
	Format    string        `json:"format"`
	Timeout   time.Duration `json:"timeout"`
}

// DefaultFetcherConfig returns a fetcher configuration that pulls the best
// audio-only stream into ./media. Full games run long, hence the generous
// timeout.
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		YtdlpPath: "yt-dlp",
		OutputDir: "media",
		Format:    "bestaudio/best",
		Timeout:   30 * time.Minute,
	}
}

// Validate rejects configurations the fetcher cannot run with
func (c *FetcherConfig) Validate() error {
	if c.YtdlpPath == "" {
		return fmt.Errorf("yt-dlp path is empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is empty")
	}
	if c.Format == "" {
		return fmt.Errorf("download format is empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", c.Timeout)
	}
	return nil
}

// Fetcher downloads video audio tracks with yt-dlp
type Fetcher struct {
	config *FetcherConfig
	logger logging.Logger
}

// NewFetcher creates a fetcher. A nil config gets the defaults.
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = DefaultFetcherConfig()
	}
	return &Fetcher{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "fetcher",
		}),
	}
}

// Config returns the configuration the fetcher was built with
func (f *Fetcher) Config() *FetcherConfig {
	return f.config
}

// Probe reads video metadata without downloading anything
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (*VideoInfo, error) {
	logger := f.logger.WithFields(logging.Fields{
		"function": "Probe",
		"url":      rawURL,
	})

	runCtx, cancel := f.scopedContext(ctx)
	defer cancel()

	args := []string{"-J", "--no-warnings", "--no-playlist", rawURL}
	output, err := exec.CommandContext(runCtx, f.config.YtdlpPath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("yt-dlp probe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("yt-dlp probe failed: %w", err)
	}

	info, err := parseVideoInfo(output)
	if err != nil {
		return nil, err
	}

	logger.Debug("probe complete", logging.Fields{
		"video_id": info.VideoID,
		"title":    info.Title,
		"duration": info.Duration,
	})

	return info, nil
}

// Download fetches the audio track of a video into the output directory
// and returns the downloaded file path alongside the probed metadata. The
// output template keys files by video ID so repeated fetches overwrite
// rather than accumulate.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, *VideoInfo, error) {
	info, err := f.Probe(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}

	logger := f.logger.WithFields(logging.Fields{
		"function": "Download",
		"video_id": info.VideoID,
		"title":    info.Title,
	})

	if err := os.MkdirAll(f.config.OutputDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runCtx, cancel := f.scopedContext(ctx)
	defer cancel()

	start := time.Now()
	args := f.buildDownloadArgs(rawURL)
	if _, err := exec.CommandContext(runCtx, f.config.YtdlpPath, args...).Output(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return "", nil, fmt.Errorf("yt-dlp download failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return "", nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	path, err := f.findDownloaded(info.VideoID)
	if err != nil {
		return "", nil, err
	}

	logger.Info("download complete", logging.Fields{
		"path":        path,
		"download_ms": time.Since(start).Milliseconds(),
	})

	return path, info, nil
}

func (f *Fetcher) buildDownloadArgs(rawURL string) []string {
	return []string{
		"-f", f.config.Format,
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"-o", filepath.Join(f.config.OutputDir, "%(id)s.%(ext)s"),
		rawURL,
	}
}

// findDownloaded locates the file yt-dlp wrote for a video ID. The
// extension depends on the stream yt-dlp picked; with several matches the
// newest wins.
func (f *Fetcher) findDownloaded(videoID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(f.config.OutputDir, videoID+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to scan output directory: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("downloaded file for %s not found in %s", videoID, f.config.OutputDir)
	}

	newest := matches[0]
	var newestTime time.Time
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if fi.ModTime().After(newestTime) {
			newest = m
			newestTime = fi.ModTime()
		}
	}
	return newest, nil
}

// CheckTool verifies that yt-dlp responds at its configured path
func (f *Fetcher) CheckTool(ctx context.Context) error {
	if err := exec.CommandContext(ctx, f.config.YtdlpPath, "--version").Run(); err != nil {
		return fmt.Errorf("%s not available: %w", f.config.YtdlpPath, err)
	}
	return nil
}

func (f *Fetcher) scopedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.config.Timeout > 0 {
		return context.WithTimeout(ctx, f.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// parseVideoInfo extracts video metadata from yt-dlp -J output
func parseVideoInfo(jsonData []byte) (*VideoInfo, error) {
	var info VideoInfo
	if err := json.Unmarshal(jsonData, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if info.VideoID == "" {
		return nil, fmt.Errorf("yt-dlp output carries no video ID")
	}
	return &info, nil
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// IsValidVideoID reports whether s has the shape of a YouTube video ID
func IsValidVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// ExtractVideoID pulls the video ID out of the common YouTube URL forms
// (watch, youtu.be, shorts, embed, live) or accepts a bare ID.
func ExtractVideoID(raw string) (string, error) {
	if IsValidVideoID(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unrecognized video reference %q: %w", raw, err)
	}

	if id := u.Query().Get("v"); IsValidVideoID(id) {
		return id, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 {
		candidate := segments[len(segments)-1]
		if IsValidVideoID(candidate) {
			if strings.HasSuffix(u.Host, "youtu.be") {
				return candidate, nil
			}
			if len(segments) >= 2 {
				switch segments[len(segments)-2] {
				case "shorts", "embed", "live", "v":
					return candidate, nil
				}
			}
		}
	}

	return "", fmt.Errorf("no video ID found in %q", raw)
}
