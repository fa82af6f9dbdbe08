// Package logging assembles structured slog loggers and formatting helpers used
// across mediaflow services.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so stage code can tag log lines with execution
// IDs, item indexes and stage names. A StreamHub keeps recent log lines in
// memory for the daemon's /api/logs endpoint.
package logging
