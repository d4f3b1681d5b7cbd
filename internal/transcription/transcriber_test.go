package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/procexec"
	"shortforge/internal/services"
	"shortforge/internal/subtitles"
	"shortforge/internal/testsupport"
)

func newTestTranscriber(t *testing.T, cfg config.Transcription, runner procexec.Runner) *Transcriber {
	t.Helper()
	return New(cfg, filepath.Join(t.TempDir(), "transcripts"), runner, nil)
}

func TestBuildArgsCPU(t *testing.T) {
	tr := newTestTranscriber(t, config.Default().Transcription, nil)
	args := tr.buildArgs("/audio/abc123.mp3", "/out")
	joined := strings.Join(args, " ")

	if !strings.HasPrefix(joined, "--index-url "+PypiIndexURL+" whisperx /audio/abc123.mp3") {
		t.Fatalf("unexpected prefix: %s", joined)
	}
	for _, fragment := range []string{
		"--model small",
		"--output_dir /out",
		"--output_format json",
		"--vad_method silero",
		"--device cpu --compute_type float32",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("missing %q in %s", fragment, joined)
		}
	}
	if strings.Contains(joined, "--hf_token") || strings.Contains(joined, "--language") {
		t.Fatalf("unexpected flags in %s", joined)
	}
}

func TestBuildArgsCUDAAndPyannote(t *testing.T) {
	cfg := config.Default().Transcription
	cfg.CUDAEnabled = true
	cfg.VADMethod = VADMethodPyannote
	cfg.HuggingFaceToken = "hf_secret"
	tr := newTestTranscriber(t, cfg, nil)
	joined := strings.Join(tr.buildArgs("a.mp3", "/out"), " ")

	for _, fragment := range []string{
		"--index-url " + CUDAIndexURL + " --extra-index-url " + PypiIndexURL,
		"--vad_method pyannote --hf_token hf_secret",
		"--device cuda",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("missing %q in %s", fragment, joined)
		}
	}
	if strings.Contains(joined, "--compute_type") {
		t.Fatalf("cuda run must not force compute type: %s", joined)
	}
}

func TestBuildArgsDirectCommand(t *testing.T) {
	cfg := config.Default().Transcription
	cfg.Command = "/opt/bin/whisperx"
	tr := newTestTranscriber(t, cfg, nil)
	args := tr.buildArgs("a.mp3", "/out")
	if args[0] != "a.mp3" {
		t.Fatalf("direct command must take the audio first, got %v", args[:3])
	}
}

func TestNormalizeSegments(t *testing.T) {
	in := []subtitles.Segment{
		{Start: 4, End: 5, Text: " late "},
		{Start: 1, End: 1, Text: "zero length"},
		{Start: -1, End: 2, Text: "negative"},
		{Start: 1, End: 2, Text: "early"},
		{Start: 1, End: 3, Text: "early tie"},
	}
	got, dropped := NormalizeSegments(in)
	if dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	want := []string{"early", "early tie", "late"}
	if len(got) != len(want) {
		t.Fatalf("unexpected segments %+v", got)
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("segment %d: got %q want %q", i, got[i].Text, want[i])
		}
	}
}

func TestLoadTranscriptLanguageFallback(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		body     string
		fallback string
		want     string
	}{
		{"detected", `{"language":"fr","segments":[]}`, "en", "fr"},
		{"three letter", `{"language":"deu","segments":[]}`, "en", "de"},
		{"missing", `{"segments":[]}`, "es", "es"},
		{"garbage", `{"language":"??","segments":[]}`, "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, _, err := LoadTranscript(path, tt.fallback)
			if err != nil {
				t.Fatalf("LoadTranscript failed: %v", err)
			}
			if got.Language != tt.want {
				t.Fatalf("language = %q, want %q", got.Language, tt.want)
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	audio := testsupport.WriteAudioFiles(t, t.TempDir(), "abc123")[0]
	runner := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{
		Language: "en",
		Segments: []testsupport.Segment{
			{Start: 2, End: 3, Text: " second "},
			{Start: 0, End: 1.5, Text: "first"},
			{Start: 5, End: 4, Text: "bogus"},
		},
	})
	tr := newTestTranscriber(t, config.Default().Transcription, runner)

	got, err := tr.Transcribe(t.Context(), audio)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got.Language != "en" {
		t.Fatalf("unexpected language %q", got.Language)
	}
	if len(got.Segments) != 2 || got.Segments[0].Text != "first" || got.Segments[1].Text != "second" {
		t.Fatalf("unexpected segments %+v", got.Segments)
	}

	entries, err := os.ReadDir(tr.workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected whisperx output cleaned up, found %d entries", len(entries))
	}
}

func TestTranscribeFailures(t *testing.T) {
	audio := testsupport.WriteAudioFiles(t, t.TempDir(), "abc123")[0]

	failing := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{
		Fail: func(testsupport.Call) error { return errors.New("CUDA out of memory") },
	})
	_, err := newTestTranscriber(t, config.Default().Transcription, failing).Transcribe(t.Context(), audio)
	if !errors.Is(err, services.ErrTranscription) || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected ErrTranscription with diagnostics, got %v", err)
	}

	silent := &testsupport.FakeRunner{}
	_, err = newTestTranscriber(t, config.Default().Transcription, silent).Transcribe(t.Context(), audio)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription when no JSON is written, got %v", err)
	}

	_, err = newTestTranscriber(t, config.Default().Transcription, silent).Transcribe(t.Context(), filepath.Join(t.TempDir(), "missing.mp3"))
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription for missing audio, got %v", err)
	}
}

func TestTranscribeSerializesCalls(t *testing.T) {
	dir := t.TempDir()
	audio := testsupport.WriteAudioFiles(t, dir, "a", "b", "c", "d")

	var active, peak int32
	tools := testsupport.NewMediaToolsRunner(t, testsupport.MediaTools{})
	runner := &testsupport.FakeRunner{Handle: func(ctx context.Context, call testsupport.Call) (procexec.Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return tools.Handle(ctx, call)
	}}
	tr := newTestTranscriber(t, config.Default().Transcription, runner)

	var wg sync.WaitGroup
	for _, path := range audio {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if _, err := tr.Transcribe(context.Background(), p); err != nil {
				t.Errorf("Transcribe(%s) failed: %v", p, err)
			}
		}(path)
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected serialized transcription, peak concurrency %d", peak)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv(torchWeightsEnv, "")
	if env := Env(); len(env) != 1 || env[0] != torchWeightsEnv+"=1" {
		t.Fatalf("unexpected env %v", env)
	}
	t.Setenv(torchWeightsEnv, "0")
	if env := Env(); env != nil {
		t.Fatalf("expected caller setting respected, got %v", env)
	}
}
