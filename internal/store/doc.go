// Package store persists workflows and execution records in SQLite.
//
// The database lives under the configured log directory and uses WAL mode so
// the daemon and CLI can share it. Writes retry briefly on SQLITE_BUSY.
// Execution logs are stored as append-only rows; snapshot writes add new lines
// and replace the results document but never touch the status column, which
// only changes through compare-and-set transitions (cancel, finalize,
// reclaim).
package store
