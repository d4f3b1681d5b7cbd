// Package services defines shared utilities consumed by the pipeline stages
// and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp inference IDs, stage names, and batch run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so every stage failure
//     carries one classification that survives wrapping.
//
// Use these helpers when wiring new stage logic so failure handling and
// observability stay uniform across the pipeline.
package services
