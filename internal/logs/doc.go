// Package logs reads the shortforge log file for `shortforge logs`.
//
// Tail returns the last N lines with bounded memory and an offset that a
// follow loop passes back in to pick up only new lines. Lines can be narrowed
// to one inference id in both the console and JSON log formats.
package logs
