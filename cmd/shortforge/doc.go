// Package main hosts the shortforge CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration, takes the workspace
// lock, and wires the media stages into a batch run. It also exposes ledger
// status, dependency checks, clip segmentation, and configuration
// scaffolding.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
