package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"shortforge/internal/compositor"
	"shortforge/internal/config"
	"shortforge/internal/logging"
	"shortforge/internal/media/ffprobe"
	"shortforge/internal/workspace"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var seconds int
	var volume float64
	var prefix string
	var outDir string

	cmd := &cobra.Command{
		Use:   "segment <video>",
		Short: "Cut a long background video into fixed-length clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			target := cfg.Paths.ClipsDir
			if strings.TrimSpace(outDir) != "" {
				if target, err = config.ExpandPath(outDir); err != nil {
					return err
				}
			}
			opts := compositor.SegmentOptions{
				Seconds: cfg.Media.SegmentSeconds,
				Volume:  &cfg.Media.SegmentVolume,
				Prefix:  cfg.Media.SegmentPrefix,
			}
			if cmd.Flags().Changed("seconds") {
				opts.Seconds = seconds
			}
			if cmd.Flags().Changed("volume") {
				opts.Volume = &volume
			}
			if cmd.Flags().Changed("prefix") {
				opts.Prefix = prefix
			}

			runner := ctx.toolRunner(cfg.Media.CommandTimeoutSeconds, nil, logging.NewComponentLogger(logger, "ffmpeg"))
			out := cmd.OutOrStdout()

			info, err := ffprobe.New(cfg.Media.FFprobeBinary, runner).Inspect(cmd.Context(), input)
			if err != nil {
				return err
			}
			if info.VideoStreamCount() == 0 {
				return fmt.Errorf("%s has no video stream", input)
			}
			if info.AudioStreamCount() == 0 && *opts.Volume != 1 {
				fmt.Fprintln(out, "Input has no audio stream; volume is left unchanged")
				opts.Volume = nil
			}
			if d := info.DurationSeconds(); d > 0 && opts.Seconds > 0 {
				fmt.Fprintf(out, "Splitting %.0fs of video into about %d clips\n", d, int(math.Ceil(d/float64(opts.Seconds))))
			}

			if _, err := compositor.New(cfg.Media, runner).Segment(cmd.Context(), input, target, opts); err != nil {
				return err
			}
			clips, err := workspace.ListClips(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Clip pool %s now holds %d clips\n", target, len(clips))
			return nil
		},
	}

	cmd.Flags().IntVar(&seconds, "seconds", 0, "Clip length in seconds (default from config)")
	cmd.Flags().Float64Var(&volume, "volume", 1, "Audio volume multiplier; 0 mutes, values other than 1 re-encode audio (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Clip file name prefix")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default: clips directory)")
	return cmd
}
