package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"shortforge/internal/procexec"
)

// Call records one invocation seen by FakeRunner.
type Call struct {
	Name string
	Args []string
}

// Output returns the final argument, which is the output path for ffmpeg.
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// Flag returns the value following flag, if present.
func (c Call) Flag(flag string) string {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// FakeRunner is a procexec.Runner that records calls and delegates to Handle.
type FakeRunner struct {
	Handle func(ctx context.Context, call Call) (procexec.Result, error)

	mu    sync.Mutex
	calls []Call
}

// Run implements procexec.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (procexec.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return procexec.Result{ExitCode: -1}, err
	}
	if f.Handle == nil {
		return procexec.Result{}, nil
	}
	return f.Handle(ctx, call)
}

// Calls returns a snapshot of recorded calls.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls for one binary.
func (f *FakeRunner) CallsTo(name string) []Call {
	var out []Call
	for _, call := range f.Calls() {
		if call.Name == name {
			out = append(out, call)
		}
	}
	return out
}

// Segment mirrors one WhisperX JSON segment.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// MediaTools configures NewMediaToolsRunner.
type MediaTools struct {
	Duration float64
	Language string
	Segments []Segment
	// Fail, when set, is consulted before each call; a non-nil error makes
	// the call exit 1 with the error text on stderr.
	Fail func(call Call) error
}

// NewMediaToolsRunner returns a FakeRunner that behaves like ffprobe, ffmpeg,
// and uvx whisperx: ffprobe prints Duration, ffmpeg writes a small file at
// its output argument, and whisperx writes a JSON transcript.
func NewMediaToolsRunner(t testing.TB, tools MediaTools) *FakeRunner {
	t.Helper()
	if tools.Language == "" {
		tools.Language = "en"
	}
	if tools.Segments == nil {
		tools.Segments = []Segment{{Start: 0, End: 1.5, Text: " Hello there."}}
	}
	return &FakeRunner{Handle: func(_ context.Context, call Call) (procexec.Result, error) {
		if tools.Fail != nil {
			if err := tools.Fail(call); err != nil {
				return procexec.Result{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("%s: exit status 1", call.Name)
			}
		}
		switch call.Name {
		case "ffprobe":
			return procexec.Result{Stdout: strconv.FormatFloat(tools.Duration, 'f', -1, 64) + "\n"}, nil
		case "ffmpeg":
			out := strings.ReplaceAll(call.Output(), "%03d", "000")
			if err := writeSmall(out); err != nil {
				return procexec.Result{ExitCode: 1, Stderr: err.Error()}, err
			}
			return procexec.Result{}, nil
		case "uvx":
			return writeTranscript(call, tools)
		}
		return procexec.Result{ExitCode: 127}, fmt.Errorf("%s: unexpected command", call.Name)
	}}
}

func writeSmall(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake media"), 0o644)
}

func writeTranscript(call Call, tools MediaTools) (procexec.Result, error) {
	var audio string
	for i, arg := range call.Args {
		if arg == "whisperx" && i+1 < len(call.Args) {
			audio = call.Args[i+1]
			break
		}
	}
	outDir := call.Flag("--output_dir")
	if audio == "" || outDir == "" {
		return procexec.Result{ExitCode: 2}, fmt.Errorf("uvx: missing audio or output dir")
	}
	payload, err := json.Marshal(map[string]any{
		"language": tools.Language,
		"segments": tools.Segments,
	})
	if err != nil {
		return procexec.Result{ExitCode: 1}, err
	}
	base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return procexec.Result{ExitCode: 1}, err
	}
	if err := os.WriteFile(filepath.Join(outDir, base+".json"), payload, 0o644); err != nil {
		return procexec.Result{ExitCode: 1}, err
	}
	return procexec.Result{}, nil
}
