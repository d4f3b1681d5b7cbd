// Package pipeline drives one inference id through the media stages.
//
// The order is fixed: PROBE_DURATION, MERGE_AUDIO, FADE_AND_TRIM, TRANSCRIBE,
// ENCODE_SUBTITLES, BURN_SUBTITLES, then DONE. The first error stops the item
// with a *StageError naming the stage; retries belong to the batch layer.
//
// With Resume enabled, stages whose output already exists and is non-empty
// are skipped, so a retried item picks up where the previous attempt failed.
// PROBE_DURATION always runs because the trim length depends on it.
package pipeline
