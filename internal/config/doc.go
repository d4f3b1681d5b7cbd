// Package config loads, normalizes, and validates shortforge configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as SHORTFORGE_HF_TOKEN
// and SHORTFORGE_NTFY_TOPIC. Stage directories that are not configured
// explicitly are derived from the workspace directory.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
