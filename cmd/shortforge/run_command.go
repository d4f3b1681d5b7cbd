package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"shortforge/internal/batch"
	"shortforge/internal/compositor"
	"shortforge/internal/config"
	"shortforge/internal/ledger"
	"shortforge/internal/logging"
	"shortforge/internal/media/ffprobe"
	"shortforge/internal/notifications"
	"shortforge/internal/pipeline"
	"shortforge/internal/preflight"
	"shortforge/internal/subtitles"
	"shortforge/internal/transcription"
	"shortforge/internal/workspace"
)

// errItemsFailed signals a finished batch that left some items in FAILED.
var errItemsFailed = errors.New("items failed")

type runFlags struct {
	workers       int
	seed          int64
	ids           []string
	noResume      bool
	skipCompleted bool
	clean         bool
	skipPreflight bool
}

func (f *runFlags) register(cmd *cobra.Command, withFilters bool) {
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Items processed concurrently (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Clip selection seed (default from config; 0 picks one)")
	cmd.Flags().BoolVar(&f.noResume, "no-resume", false, "Regenerate every stage output instead of reusing existing files")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "Remove merged and faded intermediates for completed items")
	cmd.Flags().BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip workspace and dependency checks")
	if withFilters {
		cmd.Flags().StringSliceVar(&f.ids, "id", nil, "Only process these inference ids (repeatable)")
		cmd.Flags().BoolVar(&f.skipCompleted, "skip-completed", false, "Skip items the ledger already marks done")
	}
}

func (f *runFlags) apply(cfg *config.Config) {
	if f.workers > 0 {
		cfg.Batch.Workers = f.workers
	}
	if f.seed != 0 {
		cfg.Batch.Seed = f.seed
	}
	if f.noResume {
		cfg.Batch.Resume = false
	}
	if f.clean {
		cfg.Batch.CleanIntermediates = true
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every narration file in the workspace",
		Long: "Pair each .mp3 in the audio directory with a random background clip,\n" +
			"then merge, fade, transcribe, caption, and burn subtitles into a final video.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, &flags, batch.Options{
				IDs:           flags.ids,
				SkipCompleted: flags.skipCompleted,
			})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "retry [inference-id...]",
		Short: "Rerun items the ledger marks failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(ids) == 0 {
				failed, err := failedIDs(cmd.Context(), ctx)
				if err != nil {
					return err
				}
				ids = failed
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed items to retry")
				return nil
			}
			return runBatch(cmd, ctx, &flags, batch.Options{IDs: ids})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func failedIDs(ctx context.Context, cmdCtx *commandContext) ([]string, error) {
	store, err := cmdCtx.openLedger()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	items, err := store.List(ctx, ledger.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed items: %w", err)
	}
	return lo.Map(items, func(item *ledger.Item, _ int) string { return item.InferenceID }), nil
}

func runBatch(cmd *cobra.Command, ctx *commandContext, flags *runFlags, opts batch.Options) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	flags.apply(cfg)
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	if err := workspace.FromConfig(cfg).Bootstrap(); err != nil {
		return err
	}
	if !flags.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
			for _, r := range failed {
				fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine(r.Name, statusError, r.Detail, shouldColorize(cmd.ErrOrStderr())))
			}
			return fmt.Errorf("preflight failed: %d check(s) did not pass (see `shortforge deps`)", len(failed))
		}
	}

	return ctx.withLock(func() error {
		store, err := ctx.openLedger()
		if err != nil {
			return err
		}
		defer store.Close()

		runner, err := buildBatchRunner(cfg, ctx, store, logger)
		if err != nil {
			return err
		}
		report, err := runner.Run(cmd.Context(), opts)
		printReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d of %d %w", len(report.Failed), report.Total, errItemsFailed)
		}
		return nil
	})
}

// buildBatchRunner wires the media stages into a pipeline and wraps it in a
// batch runner that records to store.
func buildBatchRunner(cfg *config.Config, ctx *commandContext, store *ledger.Store, logger *slog.Logger) (*batch.Runner, error) {
	mediaRunner := ctx.toolRunner(cfg.Media.CommandTimeoutSeconds, nil, logging.NewComponentLogger(logger, "ffmpeg"))
	whisperRunner := ctx.toolRunner(cfg.Transcription.TimeoutSeconds, transcription.Env(), logging.NewComponentLogger(logger, "whisperx"))

	pipe, err := pipeline.New(pipeline.Dependencies{
		Prober:      ffprobe.New(cfg.Media.FFprobeBinary, mediaRunner),
		Composer:    compositor.New(cfg.Media, mediaRunner),
		Transcriber: transcription.New(cfg.Transcription, filepath.Join(cfg.Paths.StateDir, "whisperx"), whisperRunner, logger),
		Burner:      subtitles.NewBurner(cfg.Media.FFmpegBinary, mediaRunner),
	}, pipeline.Options{
		FadeSeconds: cfg.Media.FadeSeconds,
		Style:       cfg.Subtitles.Style,
		Resume:      cfg.Batch.Resume,
		Observer:    batch.LedgerObserver(store),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return batch.New(batch.Settings{
		Layout:             workspace.FromConfig(cfg),
		Workers:            cfg.Batch.Workers,
		Seed:               cfg.Batch.Seed,
		CleanIntermediates: cfg.Batch.CleanIntermediates,
	}, pipe, store, notifications.NewService(cfg), logger), nil
}

func printReport(out io.Writer, report batch.Report, colorize bool) {
	if report.Total == 0 {
		fmt.Fprintln(out, "No audio files to process")
		return
	}
	for _, line := range renderSectionHeader("Batch "+report.RunID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Seed", statusInfo, fmt.Sprintf("%d", report.Seed), colorize))
	fmt.Fprintln(out, renderStatusLine("Succeeded", statusOK, fmt.Sprintf("%d of %d", len(report.Succeeded), report.Total), colorize))
	failedKind := statusOK
	if len(report.Failed) > 0 {
		failedKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", len(report.Failed)), colorize))
	if len(report.NotStarted) > 0 {
		fmt.Fprintln(out, renderStatusLine("Not started", statusWarn, strings.Join(report.NotStarted, ", "), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, report.Duration.Round(time.Second).String(), colorize))

	if len(report.Failed) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		rows = append(rows, []string{f.InferenceID, stageLabel(f.Stage.String()), f.Kind, truncate(f.Err.Error(), 80)})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Stage", "Kind", "Error"}, rows, nil))
}
