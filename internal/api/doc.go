// Package api defines the wire-format types shared by the daemon HTTP API and
// its clients (the CLI log follower and external dashboards).
//
// # Key Types
//
// WorkflowRequest: create/update payload for stored workflows. Struct tags
// are checked with go-playground/validator before the definition itself is
// validated by the graph package.
//
// ExecutionSummary/ExecutionListResponse: execution history without the
// execution log, which can grow large.
//
// DaemonStatus: lock, database, engine and scheduler state for `/api/status`.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Converters
//
// FromRecord: execution.Record -> ExecutionSummary.
//
// FromLogEvents: logging.LogEvent -> LogEvent.
//
// # Design Notes
//
// JSON keys are snake_case to match the stored execution record, so an
// execution fetched from the API and one printed by the CLI look the same.
package api
