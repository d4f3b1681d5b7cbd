// Package ledger persists batch runs and per-item pipeline outcomes in SQLite.
//
// Each inference id has one row recording its status, last stage reached,
// artifacts, attempt count, and classified failure. The batch runner writes to
// it as items move through the pipeline; the status and retry commands read it.
package ledger
