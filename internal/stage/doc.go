// Package stage names the steps of the per-item pipeline and the readiness
// records reported by dependency checks.
package stage
