package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a ledger item.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// InterruptedReason is recorded when a running item is found after an unclean shutdown.
const InterruptedReason = "interrupted before completion"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusDone,
	StatusFailed,
}

// ParseStatus attempts to map a string to a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Item is the persisted record for one inference id.
type Item struct {
	InferenceID  string
	Status       Status
	Stage        string
	AudioPath    string
	VideoPath    string
	FinalPath    string
	Language     string
	ErrorKind    string
	ErrorMessage string
	Attempts     int
	LastRunID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Run summarizes one batch invocation.
type Run struct {
	ID         string
	Seed       int64
	Total      int
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Attempt describes an item about to enter the pipeline.
type Attempt struct {
	InferenceID string
	RunID       string
	AudioPath   string
	VideoPath   string
}
