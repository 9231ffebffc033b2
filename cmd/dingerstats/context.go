package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/musselmanjoey/DingerStats/store"
	"github.com/musselmanjoey/DingerStats/transcode"
)

// commandContext resolves shared settings for subcommands. Flags win over
// environment variables, which win over defaults.
type commandContext struct {
	dbFlag    *string
	mediaFlag *string
}

func newCommandContext(dbFlag, mediaFlag *string) *commandContext {
	return &commandContext{
		dbFlag:    dbFlag,
		mediaFlag: mediaFlag,
	}
}

func (c *commandContext) dbPath() string {
	if c.dbFlag != nil && *c.dbFlag != "" {
		return *c.dbFlag
	}
	if env := os.Getenv("DINGERSTATS_DB_PATH"); env != "" {
		return env
	}
	return store.DefaultDBFile
}

func (c *commandContext) mediaDir() string {
	if c.mediaFlag != nil && *c.mediaFlag != "" {
		return *c.mediaFlag
	}
	return "media"
}

// decoderConfig returns the FFmpeg decoder configuration with tool paths
// taken from the environment when set
func (c *commandContext) decoderConfig() *transcode.DecoderConfig {
	cfg := transcode.DefaultDecoderConfig()
	if p := os.Getenv("DINGERSTATS_FFMPEG_PATH"); p != "" {
		cfg.FFmpegPath = p
	}
	if p := os.Getenv("DINGERSTATS_FFPROBE_PATH"); p != "" {
		cfg.FFprobePath = p
	}
	return cfg
}

// withStore opens the database, runs fn, and closes it again
func (c *commandContext) withStore(fn func(*store.Store) error) error {
	s, err := store.Open(c.dbPath())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
