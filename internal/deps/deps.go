package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/stage"
)

// Requirement defines an external binary shortforge shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Health converts the status into the shape status views render.
func (s Status) Health() stage.Health {
	if s.Available {
		return stage.Healthy(s.Name)
	}
	return stage.Unhealthy(s.Name, s.Detail)
}

// Requirements lists the binaries the configured pipeline needs.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "Required for segmenting, merging, fading, and burning subtitles",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Required for audio duration probing",
		},
		{
			Name:        "WhisperX",
			Command:     commandBinary(cfg.Transcription.Command),
			Description: "Required for transcription",
		},
	}
	if cfg.Transcription.CUDAEnabled {
		reqs = append(reqs, Requirement{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "Confirms a CUDA device is present for WhisperX",
			Optional:    true,
		})
	}
	return reqs
}

// Check evaluates the requirements for cfg.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// commandBinary returns the executable of a possibly multi-word command such
// as "uv tool run".
func commandBinary(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
