package compositor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/fileutil"
	"shortforge/internal/procexec"
	"shortforge/internal/services"
	"shortforge/internal/stage"
)

const (
	defaultCropSize       = "405:720"
	defaultSegmentSeconds = 60
	defaultSegmentPrefix  = "clip"

	opSegment = "SEGMENT"
)

// Compositor wraps the three stateless ffmpeg operations that shape a
// background clip around a narration track.
type Compositor struct {
	binary   string
	cropSize string
	runner   procexec.Runner
}

// New builds a Compositor from media settings.
func New(media config.Media, runner procexec.Runner) *Compositor {
	binary := strings.TrimSpace(media.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	crop := strings.TrimSpace(media.CropSize)
	if crop == "" {
		crop = defaultCropSize
	}
	if runner == nil {
		runner = procexec.ExecRunner{}
	}
	return &Compositor{binary: binary, cropSize: crop, runner: runner}
}

// SegmentOptions controls how a long video is cut into clips.
type SegmentOptions struct {
	Seconds int
	// Volume multiplies the audio level; 0 mutes. Nil leaves the audio
	// stream untouched.
	Volume *float64
	Prefix string
}

// adjustsVolume reports whether the audio has to be re-encoded.
func (o SegmentOptions) adjustsVolume() bool {
	return o.Volume != nil && *o.Volume != 1
}

func (o SegmentOptions) normalized() SegmentOptions {
	if o.Seconds <= 0 {
		o.Seconds = defaultSegmentSeconds
	}
	if strings.TrimSpace(o.Prefix) == "" {
		o.Prefix = defaultSegmentPrefix
	}
	return o
}

// SegmentPattern returns the numbered output pattern inside outDir.
func SegmentPattern(outDir, prefix string) string {
	return filepath.Join(outDir, prefix+"_%03d.mp4")
}

// SegmentArgs returns the ffmpeg arguments for cutting input into clips.
// Video is always stream-copied; audio is re-encoded only when the volume
// changes.
func SegmentArgs(input, outDir string, opts SegmentOptions) []string {
	opts = opts.normalized()
	args := baseArgs(
		"-i", input,
		"-c:v", "copy",
		"-map", "0",
		"-segment_time", strconv.Itoa(opts.Seconds),
		"-f", "segment",
		"-reset_timestamps", "1",
	)
	if opts.adjustsVolume() {
		args = append(args, "-c:a", "aac", "-filter:a", "volume="+formatSeconds(*opts.Volume))
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args, SegmentPattern(outDir, opts.Prefix))
}

// Segment splits input into fixed-length clips inside outDir and returns
// outDir. Existing files in outDir are left in place.
func (c *Compositor) Segment(ctx context.Context, input, outDir string, opts SegmentOptions) (string, error) {
	if !fileutil.NonEmptyFile(input) {
		return "", services.Wrap(services.ErrComposition, opSegment, "segment", fmt.Sprintf("input %q missing or empty", input), nil)
	}
	if v := opts.Volume; v != nil && !finiteNonNegative(*v) {
		return "", services.Wrap(services.ErrComposition, opSegment, "segment", fmt.Sprintf("invalid volume %v", *v), services.ErrValidation)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrComposition, opSegment, "segment", "create output directory", err)
	}
	result, err := c.runner.Run(ctx, c.binary, SegmentArgs(input, outDir, opts)...)
	if err != nil {
		return "", services.Wrap(services.ErrComposition, opSegment, "segment", procexec.Tail(result.Stderr, 5), err)
	}
	return outDir, nil
}

// MergeArgs returns the ffmpeg arguments that replace video's audio track
// with audio.
func MergeArgs(video, audio, output string) []string {
	return baseArgs(
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-strict", "experimental",
		output,
	)
}

// Merge writes output with video's picture and audio's sound.
func (c *Compositor) Merge(ctx context.Context, video, audio, output string) (string, error) {
	op := stage.MergeAudio.String()
	for _, input := range []string{video, audio} {
		if !fileutil.NonEmptyFile(input) {
			return "", services.Wrap(services.ErrComposition, op, "merge", fmt.Sprintf("input %q missing or empty", input), nil)
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrComposition, op, "merge", "create output directory", err)
	}
	result, err := c.runner.Run(ctx, c.binary, MergeArgs(video, audio, output)...)
	if err != nil {
		return "", services.Wrap(services.ErrComposition, op, "merge", procexec.Tail(result.Stderr, 5), err)
	}
	if !fileutil.NonEmptyFile(output) {
		return "", services.Wrap(services.ErrComposition, op, "merge", fmt.Sprintf("ffmpeg produced no output at %q", output), nil)
	}
	return output, nil
}

// TrimDuration returns the requested output length: the narration plus the
// fade tail. Negative or non-finite inputs are rejected.
func TrimDuration(audioLength, fade float64) (float64, error) {
	if !finiteNonNegative(audioLength) {
		return 0, fmt.Errorf("%w: audio length %v must be finite and non-negative", services.ErrValidation, audioLength)
	}
	if !finiteNonNegative(fade) {
		return 0, fmt.Errorf("%w: fade duration %v must be finite and non-negative", services.ErrValidation, fade)
	}
	return audioLength + fade, nil
}

// FadeFilter builds the filtergraph that trims to audio+fade, fades to black
// over the tail, and crops to size.
func FadeFilter(audioLength, fade float64, cropSize string) string {
	total := audioLength + fade
	return fmt.Sprintf("[0:v]trim=duration=%s,fade=t=out:st=%s:d=%s:color=black,crop=%s[v]",
		formatSeconds(total), formatSeconds(audioLength), formatSeconds(fade), cropSize)
}

// FadeArgs returns the ffmpeg arguments for the fade-and-trim pass.
func FadeArgs(input, output string, audioLength, fade float64, cropSize string) []string {
	return baseArgs(
		"-i", input,
		"-filter_complex", FadeFilter(audioLength, fade, cropSize),
		"-map", "[v]",
		"-map", "0:a",
		"-c:a", "copy",
		"-preset", "fast",
		output,
	)
}

// FadeAndTrim cuts input to audioLength+fade seconds with a fade to black
// over the final fade seconds and a fixed crop. Every failure is returned as
// services.ErrFadeTrim.
func (c *Compositor) FadeAndTrim(ctx context.Context, input, output string, audioLength, fade float64) (string, error) {
	op := stage.FadeAndTrim.String()
	if _, err := TrimDuration(audioLength, fade); err != nil {
		return "", services.Wrap(services.ErrFadeTrim, op, "fade", "invalid durations", err)
	}
	if !fileutil.NonEmptyFile(input) {
		return "", services.Wrap(services.ErrFadeTrim, op, "fade", fmt.Sprintf("input %q missing or empty", input), nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrFadeTrim, op, "fade", "create output directory", err)
	}
	result, err := c.runner.Run(ctx, c.binary, FadeArgs(input, output, audioLength, fade, c.cropSize)...)
	if err != nil {
		return "", services.Wrap(services.ErrFadeTrim, op, "fade", procexec.Tail(result.Stderr, 5), err)
	}
	if !fileutil.NonEmptyFile(output) {
		return "", services.Wrap(services.ErrFadeTrim, op, "fade", fmt.Sprintf("ffmpeg produced no output at %q", output), nil)
	}
	return output, nil
}

func baseArgs(args ...string) []string {
	return append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
