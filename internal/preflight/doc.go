// Package preflight provides readiness checks for the workspace and the
// external binaries shortforge depends on.
//
// These checks run in two contexts:
//   - `shortforge run` calls RunAll before discovering audio. If any check
//     fails, the batch is not started.
//   - `shortforge deps` renders the individual results as a table.
package preflight
