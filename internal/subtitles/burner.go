package subtitles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shortforge/internal/fileutil"
	"shortforge/internal/procexec"
	"shortforge/internal/services"
	"shortforge/internal/stage"
)

// Burner composites a subtitle document into a video's pixels with ffmpeg.
type Burner struct {
	binary string
	runner procexec.Runner
}

// NewBurner builds a Burner. An empty binary defaults to "ffmpeg".
func NewBurner(binary string, runner procexec.Runner) *Burner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = procexec.ExecRunner{}
	}
	return &Burner{binary: binary, runner: runner}
}

// OutputPath returns where Burn writes: the video's basename inside outDir.
func OutputPath(videoPath, outDir string) string {
	return filepath.Join(outDir, filepath.Base(videoPath))
}

// BurnArgs returns the ffmpeg arguments for a subtitle burn-in.
func BurnArgs(videoPath, subtitlePath, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", "ass=" + quoteFilterValue(subtitlePath),
		"-c:a", "copy",
		output,
	}
}

// Burn overlays subtitlePath onto videoPath and writes the result into
// outDir, creating it if needed. The audio stream is copied unchanged.
func (b *Burner) Burn(ctx context.Context, videoPath, subtitlePath, outDir string) (string, error) {
	op := stage.BurnSubtitles.String()
	if !fileutil.NonEmptyFile(videoPath) {
		return "", services.Wrap(services.ErrComposition, op, "burn", fmt.Sprintf("video %q missing or empty", videoPath), nil)
	}
	if !fileutil.NonEmptyFile(subtitlePath) {
		return "", services.Wrap(services.ErrSubtitleIO, op, "burn", fmt.Sprintf("subtitle %q missing or empty", subtitlePath), nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrComposition, op, "burn", "create output directory", err)
	}

	output := OutputPath(videoPath, outDir)
	result, err := b.runner.Run(ctx, b.binary, BurnArgs(videoPath, subtitlePath, output)...)
	if err != nil {
		return "", services.Wrap(services.ErrComposition, op, "burn", procexec.Tail(result.Stderr, 5), err)
	}
	if !fileutil.NonEmptyFile(output) {
		return "", services.Wrap(services.ErrComposition, op, "burn", fmt.Sprintf("ffmpeg produced no output at %q", output), nil)
	}
	return output, nil
}

// quoteFilterValue wraps a path in single quotes for the filtergraph parser.
// An embedded quote closes the string, is escaped, and reopens it.
func quoteFilterValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
