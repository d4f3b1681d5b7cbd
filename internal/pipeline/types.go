package pipeline

import (
	"context"
	"fmt"

	"shortforge/internal/stage"
	"shortforge/internal/transcription"
	"shortforge/internal/workspace"
)

// Job is one (audio, video, inference id) triple plus every path derived
// from it. Inputs are never modified; each output is written by exactly one
// stage.
type Job struct {
	InferenceID string
	AudioPath   string
	VideoPath   string
	MergedPath  string
	FadedPath   string
	SubtitleDir string
	FinalDir    string
}

// NewJob derives all output paths for id from layout.
func NewJob(layout workspace.Layout, id, audioPath, videoPath string) Job {
	return Job{
		InferenceID: id,
		AudioPath:   audioPath,
		VideoPath:   videoPath,
		MergedPath:  layout.MergedPath(id),
		FadedPath:   layout.FadedPath(id),
		SubtitleDir: layout.SubtitlesDir,
		FinalDir:    layout.FinalDir,
	}
}

// Result describes a job that reached DONE.
type Result struct {
	InferenceID  string
	AudioSeconds float64
	TrimSeconds  float64
	Language     string
	SubtitlePath string
	FinalPath    string
	// Skipped lists stages whose outputs were reused from an earlier attempt.
	Skipped []stage.Name
}

// StageError reports which stage failed for which item.
type StageError struct {
	InferenceID string
	Stage       stage.Name
	Err         error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.InferenceID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Observer receives stage transitions, typically to persist them.
// Observer errors are logged and never fail the item.
type Observer interface {
	StageStarted(ctx context.Context, inferenceID string, name stage.Name) error
}

// DurationProber reports media length in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Composer merges audio onto video and applies the fade-and-trim pass.
type Composer interface {
	Merge(ctx context.Context, video, audio, output string) (string, error)
	FadeAndTrim(ctx context.Context, input, output string, audioLength, fade float64) (string, error)
}

// Transcriber turns narration audio into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (transcription.Transcript, error)
}

// Burner composites a subtitle file into a video.
type Burner interface {
	Burn(ctx context.Context, videoPath, subtitlePath, outDir string) (string, error)
}
