// Package batch runs the media pipeline over every narration file in the
// workspace.
//
// Each audio file becomes one job keyed by its basename. Background clips are
// assigned up-front from a seeded generator, so a recorded seed reproduces
// the pairing. Items run on a bounded worker pool and are fully isolated:
// a failure (or panic) in one item is logged, written to the ledger, and
// reported, while the rest of the batch carries on.
package batch
