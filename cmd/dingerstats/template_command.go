package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musselmanjoey/DingerStats/detect"
	"github.com/musselmanjoey/DingerStats/transcode"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Build chime templates from labeled recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newTemplateBuildCommand(ctx))
	return cmd
}

func newTemplateBuildCommand(ctx *commandContext) *cobra.Command {
	var (
		source       string
		estimates    []float64
		length       float64
		outDir       string
		averageLabel string
		metric       string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Refine labeled chime estimates into engine-ready template WAVs",
		Long: `Refine labeled chime estimates into engine-ready template WAVs.

Each --at timestamp only has to land within a couple of seconds of the
chime; the refinement scans a padded window around it and keeps the
highest-quality position. Output WAVs are conditioned and cut to template
length, ready for "dingerstats detect --template".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(estimates) == 0 {
				return fmt.Errorf("no estimates: pass --at at least once")
			}

			runCtx, cancel := signalContext()
			defer cancel()

			cfg := detect.DefaultConfig()
			detector, err := detect.NewDetector(cfg)
			if err != nil {
				return err
			}

			decoderCfg := ctx.decoderConfig()
			decoderCfg.TargetSampleRate = cfg.SampleRate
			decoder := transcode.NewDecoder(decoderCfg)

			// Catch mislabeled estimates before cutting any clips. Probe
			// duration can be absent for some containers; skip the check then.
			meta, err := decoder.Probe(runCtx, source)
			if err != nil {
				return err
			}
			if meta.Duration > 0 {
				for _, at := range estimates {
					if at >= meta.Duration {
						return fmt.Errorf("estimate %.1f s is past the end of %s (%s)",
							at, source, formatClock(meta.Duration))
					}
				}
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
			built := make([]*detect.Template, 0, len(estimates))
			for i, at := range estimates {
				spec := detect.DefaultTemplateSpec(fmt.Sprintf("%s_%02d", base, i+1), at)
				if length > 0 {
					spec.TemplateSeconds = length
				}
				if metric != "" {
					spec.Metric = detect.QualityMetric(metric)
				}

				// Decode only a window around the estimate. The extra margin
				// covers container-frame seek inaccuracy.
				clipStart := at - spec.PadSeconds - 2.0
				if clipStart < 0 {
					clipStart = 0
				}
				clipLength := spec.SearchSeconds + 4.0
				clip, err := decoder.DecodeClip(runCtx, source, clipStart, clipLength)
				if err != nil {
					return err
				}
				clipBuffer, err := detect.NewAudioBuffer(clip.PCM, clip.SampleRate)
				if err != nil {
					return err
				}
				conditioned, err := detector.Conditioner().Condition(clipBuffer)
				if err != nil {
					return err
				}

				spec.EstimateSeconds = at - clipStart
				template, err := detect.BuildTemplate(conditioned, spec)
				if err != nil {
					return err
				}
				template.SourceOffsetSeconds += clipStart

				outPath := filepath.Join(outDir, template.ID+".wav")
				if err := transcode.WriteWAV(outPath, template.Buffer.Samples(), cfg.SampleRate); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (chime at %s, %.2f s long)\n",
					outPath, formatClock(template.SourceOffsetSeconds), template.Duration())
				built = append(built, template)
			}

			if averageLabel != "" {
				averaged, err := detect.AverageTemplates(averageLabel, built...)
				if err != nil {
					return err
				}
				outPath := filepath.Join(outDir, averageLabel+".wav")
				if err := transcode.WriteWAV(outPath, averaged.Buffer.Samples(), cfg.SampleRate); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (average of %d exemplars)\n", outPath, len(built))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Recording to cut exemplars from")
	cmd.Flags().Float64SliceVar(&estimates, "at", nil, "Labeled chime time in seconds (repeatable)")
	cmd.Flags().Float64Var(&length, "length", 0, "Template length in seconds (default 2.0)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "templates", "Output directory for template WAVs")
	cmd.Flags().StringVar(&averageLabel, "average", "", "Also write an averaged reference under this label")
	cmd.Flags().StringVar(&metric, "metric", "", "Refinement metric: rms_energy, peak_amplitude, centroid_spread")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
