package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/fileutil"
	"shortforge/internal/logging"
	"shortforge/internal/services"
	"shortforge/internal/stage"
	"shortforge/internal/subtitles"
	"shortforge/internal/workspace"
)

// Dependencies are the collaborators a Pipeline drives. All are required.
type Dependencies struct {
	Prober      DurationProber
	Composer    Composer
	Transcriber Transcriber
	Burner      Burner
}

// Options tune a Pipeline.
type Options struct {
	FadeSeconds float64
	Style       config.SubtitleStyle
	// Resume reuses non-empty outputs left by an earlier attempt.
	Resume   bool
	Observer Observer
	Logger   *slog.Logger
}

// Pipeline runs one job through the fixed stage sequence. It holds no
// per-job state and is safe for concurrent use when its dependencies are.
type Pipeline struct {
	deps Dependencies
	opts Options
}

// New builds a Pipeline.
func New(deps Dependencies, opts Options) (*Pipeline, error) {
	if deps.Prober == nil || deps.Composer == nil || deps.Transcriber == nil || deps.Burner == nil {
		return nil, errors.New("pipeline: prober, composer, transcriber and burner are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Style.Name == "" && opts.Style.Fontname == "" {
		opts.Style = config.DefaultSubtitleStyle()
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

// Process runs job from PROBE_DURATION to DONE. The first failing stage
// stops the job and is returned as a *StageError; nothing is retried here.
func (p *Pipeline) Process(ctx context.Context, job Job) (Result, error) {
	if err := workspace.ValidateID(job.InferenceID); err != nil {
		return Result{}, &StageError{InferenceID: job.InferenceID, Stage: stage.ProbeDuration, Err: err}
	}
	ctx = services.WithInferenceID(ctx, job.InferenceID)
	logger := logging.WithContext(ctx, p.opts.Logger)
	started := time.Now()

	res := Result{InferenceID: job.InferenceID}
	run := &runner{pipeline: p, job: job, logger: logger}

	if err := run.stage(ctx, stage.ProbeDuration, func(ctx context.Context) error {
		seconds, err := p.deps.Prober.Duration(ctx, job.AudioPath)
		if err != nil {
			return err
		}
		res.AudioSeconds = seconds
		res.TrimSeconds = seconds + p.opts.FadeSeconds
		return nil
	}); err != nil {
		return res, err
	}

	if err := run.producing(ctx, stage.MergeAudio, job.MergedPath, &res, func(ctx context.Context) error {
		_, err := p.deps.Composer.Merge(ctx, job.VideoPath, job.AudioPath, job.MergedPath)
		return err
	}); err != nil {
		return res, err
	}

	if err := run.producing(ctx, stage.FadeAndTrim, job.FadedPath, &res, func(ctx context.Context) error {
		_, err := p.deps.Composer.FadeAndTrim(ctx, job.MergedPath, job.FadedPath, res.AudioSeconds, p.opts.FadeSeconds)
		return err
	}); err != nil {
		return res, err
	}

	if err := p.subtitleStages(ctx, run, job, &res); err != nil {
		return res, err
	}

	finalPath := subtitles.OutputPath(job.FadedPath, job.FinalDir)
	if err := run.producing(ctx, stage.BurnSubtitles, finalPath, &res, func(ctx context.Context) error {
		_, err := p.deps.Burner.Burn(ctx, job.FadedPath, res.SubtitlePath, job.FinalDir)
		return err
	}); err != nil {
		return res, err
	}
	res.FinalPath = finalPath

	logger.Info("item completed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("final_path", res.FinalPath),
		logging.String("language", res.Language),
		logging.Float64("audio_seconds", res.AudioSeconds),
		logging.Int("skipped_stages", len(res.Skipped)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

// subtitleStages runs TRANSCRIBE and ENCODE_SUBTITLES, or reuses a subtitle
// file from an earlier attempt when resuming.
func (p *Pipeline) subtitleStages(ctx context.Context, run *runner, job Job, res *Result) error {
	layout := workspace.Layout{SubtitlesDir: job.SubtitleDir}
	if p.opts.Resume {
		if path, ok := layout.FindSubtitle(job.InferenceID); ok {
			res.SubtitlePath = path
			res.Language = workspace.LanguageFromSubtitle(path, job.InferenceID)
			run.skip(stage.Transcribe, res, path)
			run.skip(stage.EncodeSubtitles, res, path)
			return nil
		}
	}

	var segments []subtitles.Segment
	if err := run.stage(ctx, stage.Transcribe, func(ctx context.Context) error {
		transcript, err := p.deps.Transcriber.Transcribe(ctx, job.AudioPath)
		if err != nil {
			return err
		}
		res.Language = transcript.Language
		segments = transcript.Segments
		return nil
	}); err != nil {
		return err
	}

	return run.stage(ctx, stage.EncodeSubtitles, func(context.Context) error {
		doc := subtitles.Render(res.Language, segments, p.opts.Style)
		path, err := subtitles.Write(job.SubtitleDir, job.InferenceID, res.Language, doc)
		if err != nil {
			return err
		}
		res.SubtitlePath = path
		run.dirty = true
		return nil
	})
}

type runner struct {
	pipeline *Pipeline
	job      Job
	logger   *slog.Logger
	// dirty is set once any artifact is regenerated; downstream outputs from
	// an earlier attempt are stale from then on.
	dirty bool
}

// producing runs a stage whose completion marker is a non-empty file at
// output, skipping it when resuming, the file already exists, and nothing
// upstream was regenerated in this attempt.
func (r *runner) producing(ctx context.Context, name stage.Name, output string, res *Result, fn func(context.Context) error) error {
	if r.pipeline.opts.Resume && !r.dirty && fileutil.NonEmptyFile(output) {
		r.skip(name, res, output)
		return nil
	}
	if err := r.stage(ctx, name, fn); err != nil {
		return err
	}
	r.dirty = true
	return nil
}

func (r *runner) skip(name stage.Name, res *Result, output string) {
	res.Skipped = append(res.Skipped, name)
	attrs := append(logging.DecisionAttrs("stage_resume", "skipped", "output already present"),
		logging.String(logging.FieldStage, name.String()),
		logging.String("output", output),
	)
	r.logger.Info("stage skipped", logging.Args(attrs...)...)
}

func (r *runner) stage(ctx context.Context, name stage.Name, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{InferenceID: r.job.InferenceID, Stage: name, Err: err}
	}
	stageCtx := services.WithStage(ctx, name.String())
	logger := logging.WithContext(stageCtx, r.pipeline.opts.Logger)

	if obs := r.pipeline.opts.Observer; obs != nil {
		if err := obs.StageStarted(stageCtx, r.job.InferenceID, name); err != nil {
			logging.WarnWithContext(logger, "stage transition not recorded", "observer_failure",
				logging.Error(err),
				logging.String(logging.FieldImpact, "ledger may show a stale stage"),
			)
		}
	}

	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()
	if err := fn(stageCtx); err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Error(err),
			logging.String("failure_kind", services.FailureKind(err)),
			logging.Duration("elapsed", time.Since(started)),
		)
		return &StageError{InferenceID: r.job.InferenceID, Stage: name, Err: err}
	}
	logger.Debug("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}
