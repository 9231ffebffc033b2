package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/musselmanjoey/DingerStats/fetch"
	"github.com/musselmanjoey/DingerStats/store"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url|video-id>",
		Short: "Download a video's audio track and register it for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signalContext()
			defer cancel()

			target := args[0]
			if fetch.IsValidVideoID(target) {
				target = "https://www.youtube.com/watch?v=" + target
			}

			cfg := fetch.DefaultFetcherConfig()
			cfg.OutputDir = ctx.mediaDir()
			fetcher := fetch.NewFetcher(cfg)

			path, info, err := fetcher.Download(runCtx, target)
			if err != nil {
				return err
			}

			return ctx.withStore(func(s *store.Store) error {
				video := &store.Video{
					VideoID:     info.VideoID,
					Title:       info.Title,
					Uploader:    info.Uploader,
					PublishedAt: info.UploadDate,
					Duration:    info.Duration,
					AudioPath:   path,
				}
				if err := s.RegisterVideo(video); err != nil {
					return err
				}
				if err := s.UpdateProcessingStatus(info.VideoID, store.StatusPending, ""); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Fetched %q (%s, %s) to %s\n",
					info.Title, info.VideoID, formatClock(info.Duration), path)
				return nil
			})
		},
	}
}
