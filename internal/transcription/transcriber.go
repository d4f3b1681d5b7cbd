package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"shortforge/internal/config"
	"shortforge/internal/language"
	"shortforge/internal/logging"
	"shortforge/internal/procexec"
	"shortforge/internal/services"
	"shortforge/internal/stage"
	"shortforge/internal/subtitles"
)

// Transcript is the recognized speech for one audio file.
type Transcript struct {
	Language string
	Segments []subtitles.Segment
}

// Transcriber runs WhisperX against narration audio. One Transcriber is
// built per batch and shared by every item; calls beyond the configured
// concurrency wait for a free slot.
type Transcriber struct {
	cfg     config.Transcription
	workDir string
	runner  procexec.Runner
	logger  *slog.Logger
	slots   *semaphore.Weighted
}

// New builds a Transcriber. WhisperX output is staged in per-call
// directories below workDir and removed once parsed.
func New(cfg config.Transcription, workDir string, runner procexec.Runner, logger *slog.Logger) *Transcriber {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = UVXCommand
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.VADMethod) == "" {
		cfg.VADMethod = VADMethodSilero
	}
	width := cfg.Concurrency
	if width <= 0 {
		width = 1
	}
	if runner == nil {
		runner = procexec.ExecRunner{Env: Env()}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcriber{
		cfg:     cfg,
		workDir: workDir,
		runner:  runner,
		logger:  logger,
		slots:   semaphore.NewWeighted(int64(width)),
	}
}

// Model returns the configured model name for logging.
func (t *Transcriber) Model() string {
	return t.cfg.Model
}

// Transcribe recognizes speech in audioPath. Segments come back with
// trimmed text, invalid spans dropped, and sorted by start time. Every
// failure is reported as services.ErrTranscription.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	op := stage.Transcribe.String()
	if info, err := os.Stat(audioPath); err != nil || info.Size() == 0 {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "transcribe", fmt.Sprintf("audio %q missing or empty", audioPath), err)
	}

	if err := t.slots.Acquire(ctx, 1); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "transcribe", "waiting for transcription slot", err)
	}
	defer t.slots.Release(1)

	if err := os.MkdirAll(t.workDir, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "transcribe", "create work directory", err)
	}
	outDir, err := os.MkdirTemp(t.workDir, "whisperx-*")
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "transcribe", "create output directory", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	t.logger.Debug("whisperx transcription started",
		logging.String("audio", audioPath),
		logging.String("model", t.cfg.Model),
		logging.Bool("cuda", t.cfg.CUDAEnabled),
	)
	result, err := t.runner.Run(ctx, t.cfg.Command, t.buildArgs(audioPath, outDir)...)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "whisperx", procexec.Tail(result.Stderr, 5), err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	transcript, dropped, err := LoadTranscript(filepath.Join(outDir, base+".json"), t.cfg.DefaultLanguage)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, op, "parse", "whisperx output", err)
	}
	if dropped > 0 {
		t.logger.Debug("dropped invalid transcript segments", logging.Int("dropped", dropped))
	}
	if len(transcript.Segments) == 0 {
		t.logger.Warn("transcript has no speech segments",
			logging.String("audio", audioPath),
			logging.String(logging.FieldEventType, "empty_transcript"),
			logging.String(logging.FieldImpact, "video will carry no subtitles"),
		)
	}
	return transcript, nil
}

// buildArgs constructs the command arguments for WhisperX. When the command
// is uvx, package index selection precedes the whisperx tool name.
func (t *Transcriber) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if filepath.Base(t.cfg.Command) == UVXCommand {
		if t.cfg.CUDAEnabled {
			args = append(args,
				"--index-url", CUDAIndexURL,
				"--extra-index-url", PypiIndexURL,
			)
		} else {
			args = append(args, "--index-url", PypiIndexURL)
		}
		args = append(args, "whisperx")
	}

	args = append(args,
		source,
		"--model", t.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_method", t.cfg.VADMethod,
	)
	if t.cfg.VADMethod == VADMethodPyannote && t.cfg.HuggingFaceToken != "" {
		args = append(args, "--hf_token", t.cfg.HuggingFaceToken)
	}

	if t.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type payload struct {
	Language string              `json:"language"`
	Segments []subtitles.Segment `json:"segments"`
}

// LoadTranscript reads a WhisperX JSON result. It returns the normalized
// transcript and how many invalid segments were discarded.
func LoadTranscript(path, fallbackLanguage string) (Transcript, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Transcript{}, 0, fmt.Errorf("whisperx wrote no result at %s: %w", path, services.ErrNotFound)
		}
		return Transcript{}, 0, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Transcript{}, 0, fmt.Errorf("parse whisperx json: %w", err)
	}
	segments, dropped := NormalizeSegments(p.Segments)
	return Transcript{
		Language: language.Normalize(p.Language, fallbackLanguage),
		Segments: segments,
	}, dropped, nil
}

// NormalizeSegments trims text, drops segments that do not satisfy
// 0 <= start < end, and stably sorts the rest by start.
func NormalizeSegments(in []subtitles.Segment) ([]subtitles.Segment, int) {
	out := make([]subtitles.Segment, 0, len(in))
	for _, seg := range in {
		if !seg.Valid() {
			continue
		}
		seg.Text = strings.TrimSpace(seg.Text)
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, len(in) - len(out)
}
