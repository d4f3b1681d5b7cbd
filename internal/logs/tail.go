package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// pollInterval is how often Follow rechecks the file for growth.
const pollInterval = 250 * time.Millisecond

// TailOptions control a single read.
type TailOptions struct {
	// Offset is the byte position to resume from. Negative means "the last
	// Limit lines".
	Offset int64
	Limit  int
	// Match, when set, keeps only lines for which it returns true.
	Match func(line string) bool
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields no lines and offset zero
// so a follower can start before the first log line is written.
func Tail(path string, opts TailOptions) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	start := opts.Offset
	// A file shorter than the offset was truncated or replaced.
	if start > info.Size() {
		start = 0
	}
	last := start < 0
	if last {
		start = 0
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	if last {
		lines, err = lastLines(file, opts.Limit, opts.Match)
	} else {
		lines, err = allLines(file, opts.Match)
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("determine log offset: %w", err)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// Follow prints the last Limit lines and then every new line until ctx ends.
// emit is called once per line.
func Follow(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	opts.Offset = -1
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		res, err := Tail(path, opts)
		if err != nil {
			return err
		}
		for _, line := range res.Lines {
			emit(line)
		}
		opts.Offset = res.Offset
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// MatchInferenceID returns a matcher for lines logged for one item, in either
// the console ("... INFO abc123 (STAGE) - msg") or JSON format.
func MatchInferenceID(id string) func(string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	jsonKey := `"inference_id":"` + id + `"`
	consoleStage := " " + id + " ("
	consoleBare := " " + id + " - "
	return func(line string) bool {
		return strings.Contains(line, jsonKey) ||
			strings.Contains(line, consoleStage) ||
			strings.Contains(line, consoleBare)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

func allLines(r io.Reader, match func(string) bool) ([]string, error) {
	scanner := newScanner(r)
	var lines []string
	for scanner.Scan() {
		if line := scanner.Text(); match == nil || match(line) {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return lines, nil
}

func lastLines(r io.Reader, limit int, match func(string) bool) ([]string, error) {
	if limit <= 0 {
		_, err := io.Copy(io.Discard, r)
		return nil, err
	}
	scanner := newScanner(r)
	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		line := scanner.Text()
		if match != nil && !match(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}
