package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musselmanjoey/DingerStats/detect"
	"github.com/musselmanjoey/DingerStats/fetch"
	"github.com/musselmanjoey/DingerStats/store"
	"github.com/musselmanjoey/DingerStats/transcode"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var (
		templatePaths []string
		estimates     []float64
		expectedMin   int
		expectedMax   int
	)

	cmd := &cobra.Command{
		Use:   "detect <audio-file|video-id>",
		Short: "Run transition detection over a recording",
		Long: `Run transition detection over a recording.

Templates come from --template WAV files produced by "dingerstats template
build", from --estimate chime timestamps refined out of the recording
itself, or both. Consensus needs at least two templates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(templatePaths) == 0 && len(estimates) == 0 {
				return fmt.Errorf("no templates: pass --template or --estimate at least twice in total")
			}

			runCtx, cancel := signalContext()
			defer cancel()

			audioPath, videoID, err := resolveRecording(ctx, args[0])
			if err != nil {
				return err
			}

			cfg := detect.DefaultConfig()
			if expectedMin > 0 {
				cfg.Selection.ExpectedCountRange[0] = expectedMin
			}
			if expectedMax > 0 {
				cfg.Selection.ExpectedCountRange[1] = expectedMax
			}
			detector, err := detect.NewDetector(cfg)
			if err != nil {
				return err
			}

			decoderCfg := ctx.decoderConfig()
			decoderCfg.TargetSampleRate = cfg.SampleRate
			decoder := transcode.NewDecoder(decoderCfg)

			meta, err := decoder.Probe(runCtx, audioPath)
			if err != nil {
				return markFailed(ctx, videoID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analyzing %s (%s, %s)\n",
				audioPath, formatClock(meta.Duration), meta.Codec)

			audio, err := decoder.DecodeFile(runCtx, audioPath)
			if err != nil {
				return markFailed(ctx, videoID, err)
			}
			signal, err := detect.NewAudioBuffer(audio.PCM, audio.SampleRate)
			if err != nil {
				return markFailed(ctx, videoID, err)
			}

			library, err := loadTemplates(detector, signal, templatePaths, estimates, cfg.SampleRate)
			if err != nil {
				return markFailed(ctx, videoID, err)
			}

			sequence, err := detector.Detect(runCtx, signal, library)
			if err != nil {
				return markFailed(ctx, videoID, err)
			}

			printSequence(cmd, audioPath, sequence)

			if videoID == "" {
				return nil
			}
			return ctx.withStore(func(s *store.Store) error {
				run := &store.DetectionRun{
					VideoID:    videoID,
					Strategy:   sequence.Strategy,
					Fitness:    sequence.Fitness,
					Incomplete: sequence.Incomplete,
				}
				marks := make([]store.TransitionMark, len(sequence.Events))
				for i, ev := range sequence.Events {
					marks[i] = store.TransitionMark{
						TimeSeconds:         ev.TimeSeconds,
						Score:               ev.Score,
						SupportingTemplates: strings.Join(ev.SupportingTemplates, ","),
					}
				}
				if err := s.SaveRun(run, marks); err != nil {
					return err
				}
				if err := s.UpdateProcessingStatus(videoID, store.StatusCompleted, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s for video %s\n", run.ID, videoID)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&templatePaths, "template", "t", nil, "Engine-ready template WAV (repeatable)")
	cmd.Flags().Float64SliceVar(&estimates, "estimate", nil, "Labeled chime time in seconds, refined from this recording (repeatable)")
	cmd.Flags().IntVar(&expectedMin, "expected-min", 0, "Minimum expected transition count (default 9)")
	cmd.Flags().IntVar(&expectedMax, "expected-max", 0, "Maximum expected transition count (default 9)")

	return cmd
}

// resolveRecording maps the positional argument to an audio path. A video
// ID resolves through the store; anything else must be a readable file.
func resolveRecording(ctx *commandContext, arg string) (audioPath, videoID string, err error) {
	if fetch.IsValidVideoID(arg) {
		err = ctx.withStore(func(s *store.Store) error {
			video, err := s.GetVideo(arg)
			if err != nil {
				return err
			}
			if video == nil {
				return fmt.Errorf("video %s is not registered; run \"dingerstats fetch\" first", arg)
			}
			if video.AudioPath == "" {
				return fmt.Errorf("video %s has no downloaded audio", arg)
			}
			audioPath = video.AudioPath
			return nil
		})
		if err != nil {
			return "", "", err
		}
		return audioPath, arg, nil
	}

	if _, err := os.Stat(arg); err != nil {
		return "", "", fmt.Errorf("audio file %s: %w", arg, err)
	}
	return arg, "", nil
}

// loadTemplates assembles the template library. --template WAVs are added
// as-is; --estimate timestamps are refined from the conditioned recording.
func loadTemplates(detector *detect.Detector, signal *detect.AudioBuffer, templatePaths []string, estimates []float64, sampleRate int) (*detect.Library, error) {
	library := detect.NewLibrary()

	for _, path := range templatePaths {
		data, err := transcode.ReadWAV(path)
		if err != nil {
			return nil, err
		}
		if data.SampleRate != sampleRate {
			return nil, fmt.Errorf("template %s is %d Hz, engine runs at %d Hz; rebuild it with \"template build\"",
				path, data.SampleRate, sampleRate)
		}
		buffer, err := detect.NewAudioBuffer(data.PCM, data.SampleRate)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := library.Add(&detect.Template{ID: id, SourceLabel: path, Buffer: buffer}); err != nil {
			return nil, err
		}
	}

	if len(estimates) > 0 {
		conditioned, err := detector.Conditioner().Condition(signal)
		if err != nil {
			return nil, err
		}
		for i, at := range estimates {
			spec := detect.DefaultTemplateSpec(fmt.Sprintf("estimate_%02d", i+1), at)
			template, err := detect.BuildTemplate(conditioned, spec)
			if err != nil {
				return nil, err
			}
			if err := library.Add(template); err != nil {
				return nil, err
			}
		}
	}

	return library, nil
}

func printSequence(cmd *cobra.Command, source string, sequence *detect.EventSequence) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s: %d transitions (strategy %s, fitness %.4f)\n",
		source, len(sequence.Events), sequence.Strategy, sequence.Fitness)
	if sequence.Incomplete {
		fmt.Fprintln(out, "Sequence is incomplete: fewer transitions than a full game carries")
	}
	for i, ev := range sequence.Events {
		fmt.Fprintf(out, "  %2d. %s  score %.3f  templates %s\n",
			i+1, formatClock(ev.TimeSeconds), ev.Score, strings.Join(ev.SupportingTemplates, ","))
	}
}

func markFailed(ctx *commandContext, videoID string, cause error) error {
	if videoID != "" {
		_ = ctx.withStore(func(s *store.Store) error {
			return s.UpdateProcessingStatus(videoID, store.StatusFailed, cause.Error())
		})
	}
	return cause
}
