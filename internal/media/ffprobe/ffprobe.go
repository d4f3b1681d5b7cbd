package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"shortforge/internal/procexec"
	"shortforge/internal/services"
	"shortforge/internal/stage"
)

var stageProbe = stage.ProbeDuration.String()

// Prober runs ffprobe through a procexec.Runner.
type Prober struct {
	binary string
	runner procexec.Runner
}

// New builds a Prober. An empty binary defaults to "ffprobe".
func New(binary string, runner procexec.Runner) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = procexec.ExecRunner{}
	}
	return &Prober{binary: binary, runner: runner}
}

// DurationArgs returns the ffprobe arguments used to read a container duration.
func DurationArgs(path string) []string {
	return []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path}
}

// Duration reports the length of the media at path in seconds. Any tool
// failure or unusable output is reported as services.ErrProbe.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, services.Wrap(services.ErrProbe, stageProbe, "duration", "empty path", nil)
	}
	result, err := p.runner.Run(ctx, p.binary, DurationArgs(path)...)
	if err != nil {
		detail := procexec.Tail(result.Stderr, 5)
		if detail == "" {
			detail = path
		}
		return 0, services.Wrap(services.ErrProbe, stageProbe, "duration", detail, err)
	}
	value, err := ParseDuration(result.Stdout)
	if err != nil {
		return 0, services.Wrap(services.ErrProbe, stageProbe, "duration", path, err)
	}
	return value, nil
}

// ParseDuration interprets ffprobe's bare duration output. Negative, NaN,
// infinite, and unparsable values are rejected.
func ParseDuration(output string) (float64, error) {
	cleaned := strings.TrimSpace(output)
	if cleaned == "" {
		return 0, fmt.Errorf("empty duration output")
	}
	// Some containers report one value per line; the first is the container duration.
	if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", cleaned, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("invalid duration %q", cleaned)
	}
	return value, nil
}

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against path and decodes the JSON stream listing.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrProbe, "", "inspect", "empty path", nil)
	}
	out, err := p.runner.Run(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "", "inspect", procexec.Tail(out.Stderr, 5), err)
	}

	var result Result
	if err := json.Unmarshal([]byte(out.Stdout), &result); err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "", "inspect", "parse json", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value, err := ParseDuration(r.Format.Duration)
	if err != nil {
		return 0
	}
	return value
}
