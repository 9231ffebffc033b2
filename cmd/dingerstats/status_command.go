package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musselmanjoey/DingerStats/fetch"
	"github.com/musselmanjoey/DingerStats/store"
	"github.com/musselmanjoey/DingerStats/transcode"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkTools bool

	cmd := &cobra.Command{
		Use:   "status [video-id]",
		Short: "Show processing progress, or the latest run for one video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showVideoStatus(ctx, cmd, args[0])
			}
			if err := showOverview(ctx, cmd); err != nil {
				return err
			}
			if checkTools {
				showToolHealth(ctx, cmd)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkTools, "tools", false, "Also check that ffmpeg, ffprobe and yt-dlp respond")
	return cmd
}

// showToolHealth reports whether the external binaries answer a version
// probe. Failures are printed, not returned; a missing yt-dlp should not
// make status exit nonzero.
func showToolHealth(ctx *commandContext, cmd *cobra.Command) {
	runCtx, cancel := signalContext()
	defer cancel()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Tools:")
	decoder := transcode.NewDecoder(ctx.decoderConfig())
	if err := decoder.CheckTools(runCtx); err != nil {
		fmt.Fprintf(out, "  ffmpeg/ffprobe: %v\n", err)
	} else {
		fmt.Fprintln(out, "  ffmpeg/ffprobe: ok")
	}
	fetcher := fetch.NewFetcher(nil)
	if err := fetcher.CheckTool(runCtx); err != nil {
		fmt.Fprintf(out, "  yt-dlp: %v\n", err)
	} else {
		fmt.Fprintln(out, "  yt-dlp: ok")
	}
}

func showOverview(ctx *commandContext, cmd *cobra.Command) error {
	return ctx.withStore(func(s *store.Store) error {
		out := cmd.OutOrStdout()

		stats, err := s.GetStats()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Videos: %d registered, %d analyzed\n", stats.TotalVideos, stats.AnalyzedVideos)
		for _, status := range []string{store.StatusPending, store.StatusCompleted, store.StatusFailed} {
			if n, ok := stats.ByStatus[status]; ok {
				fmt.Fprintf(out, "  %s: %d\n", status, n)
			}
		}

		unprocessed, err := s.UnprocessedVideos()
		if err != nil {
			return err
		}
		if len(unprocessed) > 0 {
			fmt.Fprintln(out, "Awaiting analysis:")
			for _, v := range unprocessed {
				fmt.Fprintf(out, "  %s  %s\n", v.VideoID, v.Title)
			}
		}
		return nil
	})
}

func showVideoStatus(ctx *commandContext, cmd *cobra.Command, videoID string) error {
	return ctx.withStore(func(s *store.Store) error {
		out := cmd.OutOrStdout()

		video, err := s.GetVideo(videoID)
		if err != nil {
			return err
		}
		if video == nil {
			return fmt.Errorf("video %s is not registered", videoID)
		}
		fmt.Fprintf(out, "%s  %s (%s)\n", video.VideoID, video.Title, formatClock(video.Duration))

		run, marks, err := s.LatestRun(videoID)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Fprintln(out, "No detection runs yet")
			return nil
		}

		fmt.Fprintf(out, "Latest run %s: %d transitions (strategy %s, fitness %.4f)\n",
			run.ID, len(marks), run.Strategy, run.Fitness)
		if run.Incomplete {
			fmt.Fprintln(out, "Sequence is incomplete")
		}
		for i, m := range marks {
			support := strings.ReplaceAll(m.SupportingTemplates, ",", ", ")
			fmt.Fprintf(out, "  %2d. %s  score %.3f  templates %s\n",
				i+1, formatClock(m.TimeSeconds), m.Score, support)
		}
		return nil
	})
}
