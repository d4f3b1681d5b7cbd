// Package logging builds the slog loggers used by shortforge.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with the batch run, inference id, and
// pipeline stage. Tests and wiring code that must not fail can use NewNop.
package logging
