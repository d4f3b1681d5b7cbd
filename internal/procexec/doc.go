// Package procexec runs external tools (ffmpeg, ffprobe, uvx) behind a small
// Runner interface so stage code can be exercised with fakes.
package procexec
