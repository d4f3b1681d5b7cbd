package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"shortforge/internal/procexec"
	"shortforge/internal/testsupport"
)

func seedWorkspace(t *testing.T, env *cliTestEnv, ids ...string) {
	t.Helper()
	testsupport.WriteAudioFiles(t, env.dir("raw_audio"), ids...)
	testsupport.WriteClips(t, env.dir("clips"), 2)
}

func TestRunProducesFinalVideosAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	seedWorkspace(t, env, "abc123", "def456")
	runner := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{Duration: 12})

	out, _, err := runCLI(t, runner, env.configPath, "run", "--skip-preflight", "--seed", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "2 of 2")

	for _, path := range []string{
		filepath.Join(env.dir("merged"), "abc123.mp4"),
		filepath.Join(env.dir("faded"), "abc123.mp4"),
		filepath.Join(env.dir("subtitles"), "abc123.en.ass"),
		filepath.Join(env.dir("final"), "abc123.mp4"),
		filepath.Join(env.dir("final"), "def456.mp4"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}

	out, _, err = runCLI(t, nil, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "abc123")
	requireContains(t, out, "English")
	requireContains(t, out, "2/2 succeeded")

	out, _, err = runCLI(t, nil, env.configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload statusJSON
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if payload.Counts["done"] != 2 || len(payload.Items) != 2 {
		t.Fatalf("unexpected status payload %+v", payload)
	}
	if payload.Run == nil || payload.Run.Seed != 3 {
		t.Fatalf("expected latest run with seed 3, got %+v", payload.Run)
	}

	out, _, err = runCLI(t, nil, env.configPath, "status", "--csv")
	if err != nil {
		t.Fatalf("status --csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "inference_id,status,stage") {
		t.Fatalf("unexpected csv output:\n%s", out)
	}
	requireContains(t, lines[1], "abc123,done")
}

func TestRunReportsFailuresThenRetrySucceeds(t *testing.T) {
	env := setupCLITestEnv(t)
	seedWorkspace(t, env, "good", "flaky")

	failing := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{
		Duration: 5,
		Fail: func(c testsupport.Call) error {
			if c.Name == "uvx" && strings.Contains(strings.Join(c.Args, " "), "flaky.mp3") {
				return errors.New("CUDA out of memory")
			}
			return nil
		},
	})
	out, _, err := runCLI(t, failing, env.configPath, "run", "--skip-preflight")
	if !errors.Is(err, errItemsFailed) {
		t.Fatalf("expected errItemsFailed, got %v", err)
	}
	requireContains(t, out, "flaky")
	requireContains(t, out, "Transcribe")

	out, _, err = runCLI(t, nil, env.configPath, "status", "--status", "failed")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "flaky")
	if strings.Contains(out, "good ") {
		t.Fatalf("status filter leaked done item:\n%s", out)
	}

	healthy := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{Duration: 5})
	if _, _, err := runCLI(t, healthy, env.configPath, "retry", "--skip-preflight"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	uvxCalls := 0
	for _, c := range healthy.CallsTo("uvx") {
		if strings.Contains(strings.Join(c.Args, " "), "good.mp3") {
			t.Fatal("retry must not reprocess completed items")
		}
		uvxCalls++
	}
	if uvxCalls != 1 {
		t.Fatalf("expected one transcription on retry, got %d", uvxCalls)
	}

	out, _, err = runCLI(t, nil, env.configPath, "retry", "--skip-preflight")
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	requireContains(t, out, "No failed items")
}

func TestRunRefusesLockedWorkspace(t *testing.T) {
	env := setupCLITestEnv(t)
	seedWorkspace(t, env, "a")

	lock := flock.New(filepath.Join(env.dir("state"), "shortforge.lock"))
	if err := os.MkdirAll(env.dir("state"), 0o755); err != nil {
		t.Fatal(err)
	}
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: %v", err)
	}
	defer func() { _ = lock.Unlock() }()

	runner := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{Duration: 5})
	_, _, err = runCLI(t, runner, env.configPath, "run", "--skip-preflight")
	if !errors.Is(err, errWorkspaceBusy) {
		t.Fatalf("expected errWorkspaceBusy, got %v", err)
	}
	if len(runner.Calls()) != 0 {
		t.Fatal("no tool should run while the workspace is locked")
	}
}

func TestSegmentFillsClipPool(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "gameplay.mp4")
	testsupport.WriteFile(t, source, 64)

	runner := &testsupport.FakeRunner{Handle: func(_ context.Context, call testsupport.Call) (procexec.Result, error) {
		switch call.Name {
		case "ffprobe":
			return procexec.Result{Stdout: `{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"duration":"150.0"}}`}, nil
		case "ffmpeg":
			pattern := call.Output()
			for _, n := range []string{"000", "001", "002"} {
				testsupport.WriteFile(t, strings.ReplaceAll(pattern, "%03d", n), 16)
			}
			return procexec.Result{}, nil
		}
		return procexec.Result{ExitCode: 127}, errors.New("unexpected command")
	}}

	out, _, err := runCLI(t, runner, env.configPath, "segment", source, "--seconds", "60", "--volume", "0.5")
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	requireContains(t, out, "about 3 clips")
	requireContains(t, out, "now holds 3 clips")

	calls := runner.CallsTo("ffmpeg")
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	if got := calls[0].Flag("-filter:a"); got != "volume=0.5" {
		t.Fatalf("expected volume filter, got %q", got)
	}
}

func segmentRunner(t *testing.T, probe string) *testsupport.FakeRunner {
	t.Helper()
	return &testsupport.FakeRunner{Handle: func(_ context.Context, call testsupport.Call) (procexec.Result, error) {
		switch call.Name {
		case "ffprobe":
			return procexec.Result{Stdout: probe}, nil
		case "ffmpeg":
			testsupport.WriteFile(t, strings.ReplaceAll(call.Output(), "%03d", "000"), 16)
			return procexec.Result{}, nil
		}
		return procexec.Result{ExitCode: 127}, errors.New("unexpected command")
	}}
}

func TestSegmentVolumeZeroMutes(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "gameplay.mp4")
	testsupport.WriteFile(t, source, 64)
	runner := segmentRunner(t, `{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"duration":"30"}}`)

	if _, _, err := runCLI(t, runner, env.configPath, "segment", source, "--volume", "0"); err != nil {
		t.Fatalf("segment: %v", err)
	}
	calls := runner.CallsTo("ffmpeg")
	if len(calls) != 1 || calls[0].Flag("-filter:a") != "volume=0" {
		t.Fatalf("expected a muting volume filter, got %+v", calls)
	}
}

func TestSegmentWithoutAudioIgnoresVolume(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "silent.mp4")
	testsupport.WriteFile(t, source, 64)
	runner := segmentRunner(t, `{"streams":[{"codec_type":"video"}],"format":{"duration":"30"}}`)

	out, _, err := runCLI(t, runner, env.configPath, "segment", source, "--volume", "0.5")
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	requireContains(t, out, "no audio stream")
	calls := runner.CallsTo("ffmpeg")
	if len(calls) != 1 || calls[0].Flag("-filter:a") != "" || calls[0].Flag("-c:a") != "copy" {
		t.Fatalf("expected audio stream copy, got %+v", calls)
	}
}

func TestSegmentRejectsAudioOnlyInput(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "podcast.mp4")
	testsupport.WriteFile(t, source, 64)
	runner := &testsupport.FakeRunner{Handle: func(_ context.Context, call testsupport.Call) (procexec.Result, error) {
		return procexec.Result{Stdout: `{"streams":[{"codec_type":"audio"}],"format":{"duration":"10"}}`}, nil
	}}
	if _, _, err := runCLI(t, runner, env.configPath, "segment", source); err == nil {
		t.Fatal("expected audio-only input to be rejected")
	}
	if len(runner.CallsTo("ffmpeg")) != 0 {
		t.Fatal("ffmpeg must not run for audio-only input")
	}
}

func TestDepsReportsMissingBinary(t *testing.T) {
	env := setupCLITestEnv(t)
	_ = testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffprobe", "uvx"))
	cfgText, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfgText = append(cfgText, []byte("\n[media]\nffmpeg_binary = \"shortforge-missing-ffmpeg\"\n")...)
	if err := os.WriteFile(env.configPath, cfgText, 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, nil, env.configPath, "deps")
	if err == nil {
		t.Fatal("expected deps to fail when ffmpeg is missing")
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "MISSING")
	requireContains(t, out, "WhisperX")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, nil, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}
