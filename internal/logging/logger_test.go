package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortforge/internal/config"
	"shortforge/internal/logging"
	"shortforge/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("batch started", logging.String("run_id", "r-1"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "batch started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", logging.LogFileName)
	logger, err := logging.New(logging.Options{Format: "json", Console: &console, File: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("item completed", logging.String("inference_id", "abc123"))

	if !strings.Contains(console.String(), `"inference_id":"abc123"`) {
		t.Fatalf("expected record on console, got %q", console.String())
	}
	if !strings.Contains(readLog(t, logPath), `"msg":"item completed"`) {
		t.Fatal("expected record in log file")
	}
}

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:  format,
		Level:   level,
		Console: io.Discard,
		File:    logPath,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger.Info("message without caller")

	if content := readLog(t, path); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Debug("message with caller")

	if content := readLog(t, path); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerComposesSubject(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger = logging.NewComponentLogger(logger, "pipeline")

	ctx := services.WithInferenceID(context.Background(), "abc123")
	ctx = services.WithStage(ctx, "TRANSCRIBE")
	logging.WithContext(ctx, logger).Info("stage started", logging.Int("segments", 4))

	content := readLog(t, path)
	for _, want := range []string{"INFO [pipeline] abc123 (TRANSCRIBE) - stage started", "segments=4"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, "inference_id=") {
		t.Fatalf("expected inference id folded into the subject, got %q", content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logger, path := newFileLogger(t, "json", "debug")
	logger.Info("json message", logging.String("k", "v"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["msg"] != "json message" || record["k"] != "v" || record["level"] != "info" {
		t.Fatalf("unexpected json record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "invalid")
	logger.Debug("hidden")
	logger.Info("visible")

	content := readLog(t, path)
	if strings.Contains(content, "hidden") || !strings.Contains(content, "visible") {
		t.Fatalf("expected info threshold, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithInferenceID(ctx, "abc123")
	ctx = services.WithStage(ctx, "MERGE_AUDIO")
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]string{
		logging.FieldRunID:       "run-1",
		logging.FieldInferenceID: "abc123",
		logging.FieldStage:       "MERGE_AUDIO",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("field %s = %v, want %q", key, record[key], value)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "clip pool small", "clip_pool_small", logging.String(logging.FieldErrorHint, "add clips"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldEventType] != "clip_pool_small" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "add clips" {
		t.Fatalf("expected caller hint to win, got %v", record[logging.FieldErrorHint])
	}
	if record[logging.FieldImpact] == nil {
		t.Fatal("expected default impact")
	}
}

func TestErrorAttr(t *testing.T) {
	if attr := logging.Error(nil); attr.Key != "" {
		t.Fatalf("expected empty attr for nil error, got %v", attr)
	}
	if attr := logging.Error(errors.New("boom")); attr.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", attr)
	}
}
