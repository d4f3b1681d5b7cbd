// Package compositor segments, merges, and fades video with ffmpeg.
//
// Each operation is a validated wrapper around one ffmpeg invocation issued
// through procexec.Runner. Argument builders are exported so callers and
// tests can inspect the exact command shape without running ffmpeg.
package compositor
