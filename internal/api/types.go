package api

import (
	"maps"
	"time"

	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
	"mediaflow/internal/logging"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/stage"
	"mediaflow/internal/store"
	"mediaflow/internal/workerpool"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WorkflowRequest creates or replaces a stored workflow.
type WorkflowRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Definition  graph.Definition `json:"definition"`
	Schedule    string           `json:"schedule" validate:"omitempty,max=100"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// Workflow converts the request into a store model. Requests that omit
// is_active produce active workflows.
func (r WorkflowRequest) Workflow() store.Workflow {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return store.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Definition:  r.Definition,
		Schedule:    r.Schedule,
		IsActive:    active,
	}
}

// WorkflowListResponse wraps stored workflows.
type WorkflowListResponse struct {
	Workflows []*store.Workflow `json:"workflows"`
}

// ExecutionSummary is an execution without its log.
type ExecutionSummary struct {
	ID             int64            `json:"id"`
	WorkflowID     int64            `json:"workflow_id"`
	Status         execution.Status `json:"status"`
	VideosCount    int              `json:"videos_count"`
	ProcessedCount int              `json:"processed_count"`
	ScannedCount   int              `json:"scanned_videos_count"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// FromRecord converts an execution record into its list representation.
func FromRecord(rec *execution.Record) ExecutionSummary {
	if rec == nil {
		return ExecutionSummary{}
	}
	return ExecutionSummary{
		ID:             rec.ID,
		WorkflowID:     rec.WorkflowID,
		Status:         rec.Status,
		VideosCount:    rec.Results.VideosCount,
		ProcessedCount: rec.Results.ProcessedCount,
		ScannedCount:   rec.Results.ScannedVideosCount,
		ErrorMessage:   rec.ErrorMessage,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
	}
}

// ExecutionListResponse wraps a page of execution history.
type ExecutionListResponse struct {
	Executions []ExecutionSummary `json:"executions"`
	Skip       int                `json:"skip"`
	Limit      int                `json:"limit"`
}

// NewExecutionList converts records into a list response.
func NewExecutionList(records []*execution.Record, skip, limit int) ExecutionListResponse {
	out := ExecutionListResponse{Executions: make([]ExecutionSummary, 0, len(records)), Skip: skip, Limit: limit}
	for _, rec := range records {
		out.Executions = append(out.Executions, FromRecord(rec))
	}
	return out
}

// ExecuteResponse is returned when an execution is triggered.
type ExecuteResponse struct {
	ExecutionID int64            `json:"execution_id"`
	Status      execution.Status `json:"status"`
	Message     string           `json:"message"`
}

// CancelResponse is returned when an execution is cancelled.
type CancelResponse struct {
	ExecutionID int64  `json:"execution_id"`
	Message     string `json:"message"`
}

// DeleteExecutionResponse lists the artifacts removed with an execution.
type DeleteExecutionResponse struct {
	ExecutionID  int64    `json:"execution_id"`
	DeletedFiles []string `json:"deleted_files"`
}

// EngineStatus summarizes the workflow engine.
type EngineStatus struct {
	ActiveExecutions []int64          `json:"active_executions"`
	Executions       map[string]int   `json:"executions"`
	Pool             workerpool.Stats `json:"pool"`
	EventObservers   int              `json:"event_observers"`
	StageHealth      []stage.Health   `json:"stage_health"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	APIAddress   string            `json:"api_address,omitempty"`
	LockFilePath string            `json:"lock_file_path"`
	Database     store.Health      `json:"database"`
	Engine       EngineStatus      `json:"engine"`
	Scheduled    []scheduler.Entry `json:"scheduled"`
	KafkaExport  bool              `json:"kafka_export"`
}

// ExecutionCounts converts status counts into string-keyed JSON.
func ExecutionCounts(counts map[execution.Status]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// LogEvent represents a structured log line for streaming consumers.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	ExecutionID   int64             `json:"execution_id,omitempty"`
	ItemIndex     int               `json:"item_index,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is returned by `GET /api/logs`. Next is the sequence to
// pass as `since` on the following request.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// FromLogEvents converts hub events into wire events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		converted := LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     evt.Timestamp,
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			ExecutionID:   evt.ExecutionID,
			ItemIndex:     evt.ItemIndex,
			Stage:         evt.Stage,
			CorrelationID: evt.CorrelationID,
		}
		if len(evt.Fields) > 0 {
			converted.Fields = maps.Clone(evt.Fields)
		}
		out = append(out, converted)
	}
	return out
}
