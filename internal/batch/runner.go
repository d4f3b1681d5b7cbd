package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"shortforge/internal/fileutil"
	"shortforge/internal/ledger"
	"shortforge/internal/logging"
	"shortforge/internal/notifications"
	"shortforge/internal/pipeline"
	"shortforge/internal/services"
	"shortforge/internal/stage"
	"shortforge/internal/workspace"
)

// Processor runs one job through the media pipeline.
type Processor interface {
	Process(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// Settings configure a Runner.
type Settings struct {
	Layout  workspace.Layout
	Workers int
	// Seed drives clip selection; zero picks a time-derived seed.
	Seed int64
	// CleanIntermediates removes merged and faded files for items that
	// reach DONE.
	CleanIntermediates bool
}

// Runner iterates narration audio, pairs each file with a background clip,
// and runs every pair through a Processor. A failing item never stops the
// batch.
type Runner struct {
	settings  Settings
	processor Processor
	store     *ledger.Store
	notifier  notifications.Service
	logger    *slog.Logger
}

// New builds a Runner. store and notifier are optional.
func New(settings Settings, processor Processor, store *ledger.Store, notifier notifications.Service, logger *slog.Logger) *Runner {
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		settings:  settings,
		processor: processor,
		store:     store,
		notifier:  notifier,
		logger:    logger,
	}
}

// Options narrow a single batch run.
type Options struct {
	// IDs restricts the run to these inference ids. Empty means every audio file.
	IDs []string
	// SkipCompleted leaves out items the ledger already marks done.
	SkipCompleted bool
}

// Failure describes one item that did not reach DONE.
type Failure struct {
	InferenceID string
	Stage       stage.Name
	Kind        string
	Err         error
}

// Report summarizes a batch run.
type Report struct {
	RunID     string
	Seed      int64
	Total     int
	Succeeded []string
	Failed    []Failure
	// NotStarted lists items that were never scheduled because the run was cancelled.
	NotStarted []string
	Duration   time.Duration
}

type outcome struct {
	started bool
	err     error
}

// Run processes the batch. The returned error is reserved for problems that
// prevent the batch from running at all, and for cancellation; per-item
// failures are only reported in Report.Failed.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	started := time.Now()
	audio, err := workspace.DiscoverAudio(r.settings.Layout.AudioDir)
	if err != nil {
		return Report{}, fmt.Errorf("discover audio: %w", err)
	}
	audio, err = r.selectItems(ctx, audio, opts)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID: uuid.NewString(),
		Seed:  ResolveSeed(r.settings.Seed),
		Total: len(audio),
	}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.logger)

	if len(audio) == 0 {
		logger.Info("no audio to process", logging.String("audio_dir", r.settings.Layout.AudioDir))
		return report, nil
	}

	clips, err := workspace.ListClips(r.settings.Layout.ClipsDir)
	if err != nil {
		return report, fmt.Errorf("list background clips: %w", err)
	}
	if len(clips) == 0 {
		return report, fmt.Errorf("%w: no background clips in %s", services.ErrNotFound, r.settings.Layout.ClipsDir)
	}

	ids := lo.Map(audio, func(a workspace.Audio, _ int) string { return a.ID })
	assignment := AssignClips(ids, clips, report.Seed)

	if r.store != nil {
		if reset, err := r.store.ResetInterrupted(ctx); err != nil {
			logging.WarnWithContext(logger, "could not reset interrupted items", "ledger_reset_failed", logging.Error(err))
		} else if reset > 0 {
			logger.Info("marked interrupted items failed", logging.Int64("count", reset))
		}
		if err := r.store.StartRun(ctx, report.RunID, report.Seed, report.Total); err != nil {
			return report, fmt.Errorf("record run: %w", err)
		}
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("items", report.Total),
		logging.Int("clips", len(clips)),
		logging.Int("workers", r.settings.Workers),
		logging.Int64("seed", report.Seed),
	)
	r.publish(ctx, logger, notifications.EventBatchStarted, notifications.Payload{
		"runID": report.RunID,
		"count": report.Total,
	})

	outcomes := make([]outcome, len(audio))
	var group errgroup.Group
	group.SetLimit(r.settings.Workers)
	for i, item := range audio {
		if ctx.Err() != nil {
			break
		}
		job := pipeline.NewJob(r.settings.Layout, item.ID, item.Path, assignment[item.ID])
		group.Go(func() error {
			outcomes[i] = outcome{started: true, err: r.processOne(ctx, report.RunID, job)}
			return nil
		})
	}
	_ = group.Wait()

	for i, item := range audio {
		o := outcomes[i]
		switch {
		case !o.started:
			report.NotStarted = append(report.NotStarted, item.ID)
		case o.err == nil:
			report.Succeeded = append(report.Succeeded, item.ID)
		default:
			report.Failed = append(report.Failed, failureFor(item.ID, o.err))
		}
	}
	report.Duration = time.Since(started)

	if r.store != nil {
		if err := r.store.FinishRun(context.WithoutCancel(ctx), report.RunID, len(report.Succeeded), len(report.Failed)); err != nil {
			logging.WarnWithContext(logger, "could not record run completion", "ledger_write_failed", logging.Error(err))
		}
	}

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", len(report.Succeeded)),
		logging.Int("failed", len(report.Failed)),
		logging.Int("not_started", len(report.NotStarted)),
		logging.Duration("elapsed", report.Duration),
	)
	r.publish(context.WithoutCancel(ctx), logger, notifications.EventBatchCompleted, notifications.Payload{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
		"duration":  report.Duration,
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) selectItems(ctx context.Context, audio []workspace.Audio, opts Options) ([]workspace.Audio, error) {
	if len(opts.IDs) > 0 {
		wanted := lo.Uniq(opts.IDs)
		known := lo.Map(audio, func(a workspace.Audio, _ int) string { return a.ID })
		if missing := lo.Without(wanted, known...); len(missing) > 0 {
			logging.WarnWithContext(r.logger, "requested items have no audio", "missing_audio",
				logging.String("inference_ids", strings.Join(missing, ",")),
				logging.String(logging.FieldImpact, "those items are not processed"),
			)
		}
		audio = lo.Filter(audio, func(a workspace.Audio, _ int) bool { return lo.Contains(wanted, a.ID) })
	}
	if opts.SkipCompleted && r.store != nil {
		done, err := r.store.List(ctx, ledger.StatusDone)
		if err != nil {
			return nil, fmt.Errorf("list completed items: %w", err)
		}
		doneIDs := lo.Map(done, func(item *ledger.Item, _ int) string { return item.InferenceID })
		audio = lo.Reject(audio, func(a workspace.Audio, _ int) bool { return lo.Contains(doneIDs, a.ID) })
	}
	return audio, nil
}

// processOne runs a single item and records its outcome. It never panics
// and never returns an error that would affect sibling items.
func (r *Runner) processOne(ctx context.Context, runID string, job pipeline.Job) (err error) {
	ctx = services.WithInferenceID(ctx, job.InferenceID)
	logger := logging.WithContext(ctx, r.logger)

	defer func() {
		if recovered := recover(); recovered != nil {
			err = &pipeline.StageError{
				InferenceID: job.InferenceID,
				Stage:       stage.Failed,
				Err:         fmt.Errorf("panic: %v", recovered),
			}
			r.recordFailure(ctx, logger, job, err)
		}
	}()

	if r.store != nil {
		if beginErr := r.store.Begin(ctx, ledger.Attempt{
			InferenceID: job.InferenceID,
			RunID:       runID,
			AudioPath:   job.AudioPath,
			VideoPath:   job.VideoPath,
		}); beginErr != nil {
			logging.WarnWithContext(logger, "could not record item start", "ledger_write_failed", logging.Error(beginErr))
		}
	}

	attrs := append(logging.DecisionAttrs("clip_assignment", job.VideoPath, "seeded uniform choice"),
		logging.String("audio", job.AudioPath),
	)
	logger.Info("item started", logging.Args(attrs...)...)

	res, err := r.processor.Process(ctx, job)
	if err != nil {
		r.recordFailure(ctx, logger, job, err)
		return err
	}

	if r.store != nil {
		if err := r.store.Complete(context.WithoutCancel(ctx), job.InferenceID, res.FinalPath, res.Language); err != nil {
			logging.WarnWithContext(logger, "could not record item completion", "ledger_write_failed", logging.Error(err))
		}
	}
	if r.settings.CleanIntermediates {
		removed, err := fileutil.RemoveFiles(r.settings.Layout.Intermediates(job.InferenceID)...)
		if err != nil {
			logging.WarnWithContext(logger, "could not remove intermediates", "cleanup_failed", logging.Error(err))
		} else if len(removed) > 0 {
			logger.Debug("removed intermediates", logging.Int("count", len(removed)))
		}
	}
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, job pipeline.Job, err error) {
	f := failureFor(job.InferenceID, err)
	logging.ErrorWithContext(logger, "item failed", "item_failure",
		logging.String("failed_stage", f.Stage.String()),
		logging.String("failure_kind", f.Kind),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun with `shortforge retry` once the cause is fixed"),
	)
	persistCtx := context.WithoutCancel(ctx)
	if r.store != nil {
		if ledgerErr := r.store.Fail(persistCtx, job.InferenceID, f.Stage.String(), f.Kind, err.Error()); ledgerErr != nil {
			logging.WarnWithContext(logger, "could not record item failure", "ledger_write_failed", logging.Error(ledgerErr))
		}
	}
	r.publish(persistCtx, logger, notifications.EventItemFailed, notifications.Payload{
		"inferenceID": job.InferenceID,
		"stage":       f.Stage.String(),
		"error":       err,
	})
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func failureFor(id string, err error) Failure {
	f := Failure{InferenceID: id, Stage: stage.Failed, Kind: services.FailureKind(err), Err: err}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		f.Stage = stageErr.Stage
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		f.Kind = "cancelled"
	}
	return f
}
