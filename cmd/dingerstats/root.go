package main

import (
	"github.com/spf13/cobra"

	"github.com/musselmanjoey/DingerStats/logging"
)

func newRootCommand() *cobra.Command {
	var dbFlag string
	var mediaFlag string
	var verboseFlag bool

	ctx := newCommandContext(&dbFlag, &mediaFlag)

	rootCmd := &cobra.Command{
		Use:           "dingerstats",
		Short:         "Locate half-inning transitions in Dinger City broadcast audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				logging.SetVerbose(true)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (falls back to $DINGERSTATS_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&mediaFlag, "media-dir", "m", "", "Directory for downloaded audio (default \"media\")")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newTemplateCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
