package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")

	// Media pipeline failure markers. Every one of them is fatal to the item
	// that raised it and never to the batch.
	ErrProbe         = errors.New("duration probe failed")
	ErrComposition   = errors.New("composition failed")
	ErrFadeTrim      = errors.New("fade and trim failed")
	ErrTranscription = errors.New("transcription failed")
	ErrSubtitleIO    = errors.New("subtitle write failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an item error to the short label persisted in the job
// ledger and shown by the status command.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrComposition):
		return "composition"
	case errors.Is(err, ErrFadeTrim):
		return "fade_trim"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrSubtitleIO):
		return "subtitle_io"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return "invalid_input"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
