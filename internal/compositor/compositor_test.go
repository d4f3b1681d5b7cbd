package compositor_test

import (
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"shortforge/internal/compositor"
	"shortforge/internal/config"
	"shortforge/internal/services"
	"shortforge/internal/testsupport"
)

func newCompositor(t *testing.T, tools testsupport.MediaTools) (*compositor.Compositor, *testsupport.FakeRunner) {
	t.Helper()
	runner := testsupport.NewMediaToolsRunner(t, tools)
	return compositor.New(config.Default().Media, runner), runner
}

func TestTrimDurationEqualsAudioPlusFade(t *testing.T) {
	tests := []struct {
		audio, fade float64
	}{
		{0, 0},
		{10, 2},
		{12.345, 2},
		{0.1, 0.2},
		{3599.99, 1.5},
	}
	for _, tt := range tests {
		got, err := compositor.TrimDuration(tt.audio, tt.fade)
		if err != nil {
			t.Fatalf("TrimDuration(%v, %v) failed: %v", tt.audio, tt.fade, err)
		}
		if got != tt.audio+tt.fade {
			t.Fatalf("TrimDuration(%v, %v) = %v", tt.audio, tt.fade, got)
		}

		filter := compositor.FadeFilter(tt.audio, tt.fade, "405:720")
		requested := between(filter, "trim=duration=", ",")
		parsed, err := strconv.ParseFloat(requested, 64)
		if err != nil {
			t.Fatalf("parse requested duration %q: %v", requested, err)
		}
		if parsed != tt.audio+tt.fade {
			t.Fatalf("filter requests %v, want %v", parsed, tt.audio+tt.fade)
		}
	}
}

func TestTrimDurationRejectsInvalid(t *testing.T) {
	for _, pair := range [][2]float64{{-1, 2}, {1, -2}, {math.NaN(), 2}, {1, math.Inf(1)}} {
		if _, err := compositor.TrimDuration(pair[0], pair[1]); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected ErrValidation for %v, got %v", pair, err)
		}
	}
}

func TestFadeFilterShape(t *testing.T) {
	got := compositor.FadeFilter(10, 2, "405:720")
	want := "[0:v]trim=duration=12,fade=t=out:st=10:d=2:color=black,crop=405:720[v]"
	if got != want {
		t.Fatalf("FadeFilter = %q, want %q", got, want)
	}
}

func TestFadeAndTrim(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "merged", "abc123.mp4")
	output := filepath.Join(base, "faded", "abc123.mp4")
	testsupport.WriteFile(t, input, 64)

	c, runner := newCompositor(t, testsupport.MediaTools{})
	got, err := c.FadeAndTrim(t.Context(), input, output, 10, 2)
	if err != nil {
		t.Fatalf("FadeAndTrim failed: %v", err)
	}
	if got != output {
		t.Fatalf("unexpected output %q", got)
	}
	call := runner.CallsTo("ffmpeg")[0]
	if call.Flag("-filter_complex") != compositor.FadeFilter(10, 2, "405:720") {
		t.Fatalf("unexpected filter %q", call.Flag("-filter_complex"))
	}
	joined := strings.Join(call.Args, " ")
	for _, fragment := range []string{"-map [v] -map 0:a", "-c:a copy", "-preset fast", "-y"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("missing %q in %s", fragment, joined)
		}
	}
}

func TestFadeAndTrimFailuresAreErrors(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "in.mp4")
	testsupport.WriteFile(t, input, 64)

	c, _ := newCompositor(t, testsupport.MediaTools{
		Fail: func(testsupport.Call) error { return errors.New("Invalid argument") },
	})
	_, err := c.FadeAndTrim(t.Context(), input, filepath.Join(base, "out.mp4"), 10, 2)
	if !errors.Is(err, services.ErrFadeTrim) {
		t.Fatalf("expected ErrFadeTrim, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid argument") {
		t.Fatalf("expected diagnostics in error: %v", err)
	}

	c, runner := newCompositor(t, testsupport.MediaTools{})
	if _, err := c.FadeAndTrim(t.Context(), input, filepath.Join(base, "out.mp4"), -1, 2); !errors.Is(err, services.ErrFadeTrim) {
		t.Fatalf("expected ErrFadeTrim for negative audio length, got %v", err)
	}
	if _, err := c.FadeAndTrim(t.Context(), filepath.Join(base, "missing.mp4"), filepath.Join(base, "out.mp4"), 1, 2); !errors.Is(err, services.ErrFadeTrim) {
		t.Fatalf("expected ErrFadeTrim for missing input, got %v", err)
	}
	if len(runner.Calls()) != 0 {
		t.Fatal("ffmpeg must not run for rejected input")
	}
}

func TestMerge(t *testing.T) {
	base := t.TempDir()
	video := filepath.Join(base, "clips", "clip_004.mp4")
	audio := filepath.Join(base, "raw_audio", "abc123.mp3")
	output := filepath.Join(base, "merged", "abc123.mp4")
	testsupport.WriteFile(t, video, 64)
	testsupport.WriteFile(t, audio, 64)

	c, runner := newCompositor(t, testsupport.MediaTools{})
	if _, err := c.Merge(t.Context(), video, audio, output); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	want := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-i", video, "-i", audio, "-map", "0:v", "-map", "1:a",
		"-c:v", "copy", "-c:a", "aac", "-strict", "experimental", output}
	got := runner.CallsTo("ffmpeg")[0].Args
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected merge args:\n got %v\nwant %v", got, want)
	}
}

func TestMergeFailureIsCompositionError(t *testing.T) {
	base := t.TempDir()
	video := filepath.Join(base, "v.mp4")
	audio := filepath.Join(base, "a.mp3")
	testsupport.WriteFile(t, video, 64)
	testsupport.WriteFile(t, audio, 64)

	c, _ := newCompositor(t, testsupport.MediaTools{
		Fail: func(testsupport.Call) error { return errors.New("Stream map '1:a' matches no streams") },
	})
	_, err := c.Merge(t.Context(), video, audio, filepath.Join(base, "out.mp4"))
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected ErrComposition, got %v", err)
	}
	if !strings.Contains(err.Error(), "matches no streams") {
		t.Fatalf("expected stderr in error: %v", err)
	}
	if services.FailureKind(err) != "composition" {
		t.Fatalf("unexpected failure kind %q", services.FailureKind(err))
	}
}

func TestSegmentArgs(t *testing.T) {
	tests := []struct {
		name      string
		opts      compositor.SegmentOptions
		wantAudio []string
		wantTime  string
		wantOut   string
	}{
		{
			name:      "defaults copy audio",
			opts:      compositor.SegmentOptions{},
			wantAudio: []string{"-c:a", "copy"},
			wantTime:  "60",
			wantOut:   "/out/clip_%03d.mp4",
		},
		{
			name:      "volume re-encodes audio",
			opts:      compositor.SegmentOptions{Seconds: 30, Volume: volume(0.5), Prefix: "ocean"},
			wantAudio: []string{"-c:a", "aac", "-filter:a", "volume=0.5"},
			wantTime:  "30",
			wantOut:   "/out/ocean_%03d.mp4",
		},
		{
			name:      "unity volume copies audio",
			opts:      compositor.SegmentOptions{Volume: volume(1)},
			wantAudio: []string{"-c:a", "copy"},
			wantTime:  "60",
			wantOut:   "/out/clip_%03d.mp4",
		},
		{
			name:      "explicit zero mutes",
			opts:      compositor.SegmentOptions{Volume: volume(0)},
			wantAudio: []string{"-c:a", "aac", "-filter:a", "volume=0"},
			wantTime:  "60",
			wantOut:   "/out/clip_%03d.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := compositor.SegmentArgs("/in/long.mp4", "/out", tt.opts)
			call := testsupport.Call{Name: "ffmpeg", Args: args}
			if call.Flag("-segment_time") != tt.wantTime {
				t.Fatalf("unexpected segment time %q", call.Flag("-segment_time"))
			}
			if call.Output() != tt.wantOut {
				t.Fatalf("unexpected output pattern %q", call.Output())
			}
			joined := strings.Join(args, " ")
			if !strings.Contains(joined, "-c:v copy -map 0") || !strings.Contains(joined, "-f segment -reset_timestamps 1") {
				t.Fatalf("missing segment flags: %s", joined)
			}
			if !strings.Contains(joined, strings.Join(tt.wantAudio, " ")) {
				t.Fatalf("expected audio args %v in %s", tt.wantAudio, joined)
			}
		})
	}
}

func TestSegment(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "long.mp4")
	testsupport.WriteFile(t, input, 64)
	outDir := filepath.Join(base, "clips")

	c, runner := newCompositor(t, testsupport.MediaTools{})
	got, err := c.Segment(t.Context(), input, outDir, compositor.SegmentOptions{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if got != outDir {
		t.Fatalf("expected %q, got %q", outDir, got)
	}
	if len(runner.CallsTo("ffmpeg")) != 1 {
		t.Fatal("expected one ffmpeg call")
	}

	if _, err := c.Segment(t.Context(), filepath.Join(base, "missing.mp4"), outDir, compositor.SegmentOptions{}); !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected ErrComposition for missing input, got %v", err)
	}
	if _, err := c.Segment(t.Context(), input, outDir, compositor.SegmentOptions{Volume: volume(-1)}); !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected ErrComposition for negative volume, got %v", err)
	}
	if _, err := c.Segment(t.Context(), input, outDir, compositor.SegmentOptions{Volume: volume(math.NaN())}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for NaN volume, got %v", err)
	}
}

func volume(v float64) *float64 {
	return &v
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		return rest[:j]
	}
	return rest
}
