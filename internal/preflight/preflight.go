package preflight

import (
	"context"
	"fmt"

	"shortforge/internal/config"
	"shortforge/internal/deps"
)

// MinFreeBytes is the free space a batch needs on the workspace filesystem.
// Each item writes a merged, a faded, and a final copy of its clip.
const MinFreeBytes uint64 = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the workspace and binary checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	dirs := []struct{ name, path string }{
		{"Audio directory", cfg.Paths.AudioDir},
		{"Clips directory", cfg.Paths.ClipsDir},
		{"Merged directory", cfg.Paths.MergedDir},
		{"Faded directory", cfg.Paths.FadedDir},
		{"Subtitles directory", cfg.Paths.SubtitlesDir},
		{"Final directory", cfg.Paths.FinalDir},
		{"State directory", cfg.Paths.StateDir},
	}
	results := make([]Result, 0, len(dirs)+4)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return results
		}
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}
	results = append(results, CheckFreeSpace("Workspace free space", cfg.Paths.WorkspaceDir, MinFreeBytes))

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Command}
	}
	// Optional binaries only enhance a run; report them without failing it.
	if status.Optional {
		return Result{Name: status.Name, Passed: true, Detail: fmt.Sprintf("%s (optional)", status.Detail)}
	}
	return Result{Name: status.Name, Detail: status.Detail}
}
