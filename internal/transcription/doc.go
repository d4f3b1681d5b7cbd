// Package transcription wraps WhisperX speech recognition.
//
// WhisperX runs as an external process (normally through uvx) and writes a
// JSON result carrying the detected language and timed segments. The
// Transcriber owns the model configuration for a whole batch and serializes
// access through a fixed number of slots, since the model runtime is not
// assumed to tolerate concurrent use.
package transcription
