// Package language normalizes language codes reported by the transcriber.
//
// Detected languages end up in subtitle file names ({id}.{lang}.ass), so every
// code is reduced to a two-letter ISO 639-1 form with a configurable fallback.
package language
