// Package ffprobe wraps the ffprobe tool.
//
// Prober.Duration reads a container duration for the trim stage and reports
// failures as services.ErrProbe. Prober.Inspect decodes the JSON stream
// listing, which the segment command uses to check a source has video.
package ffprobe
