// Package fileutil holds small filesystem helpers shared by pipeline stages:
// atomic writes, non-empty output checks for resume, and intermediate cleanup.
package fileutil
