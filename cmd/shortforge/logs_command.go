package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"shortforge/internal/logging"
	"shortforge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var inferenceID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the shortforge log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: logs.MatchInferenceID(inferenceID)}
			out := cmd.OutOrStdout()

			if follow {
				return logs.Follow(cmd.Context(), path, opts, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			res, err := logs.Tail(path, opts)
			if err != nil {
				return err
			}
			for _, line := range res.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&inferenceID, "id", "", "Only show lines for this inference id")
	return cmd
}
