// Package events defines execution progress events and the broadcaster that
// fans them out to connected observers.
package events

import "mediaflow/internal/execution"

// Type tags an event on the wire.
type Type string

const (
	TypeLog               Type = "log"
	TypeNodeStarted       Type = "node_started"
	TypeNodeCompleted     Type = "node_completed"
	TypeItemsScanned      Type = "videos_scanned"
	TypeItemStarted       Type = "video_started"
	TypeStageUpdate       Type = "video_stage_update"
	TypeItemCompleted     Type = "video_completed"
	TypeItemFailed        Type = "video_failed"
	TypeWorkflowCompleted Type = "workflow_completed"
	TypeWorkflowFailed    Type = "workflow_failed"
)

// Event is one broadcast message: {"type": ..., "data": {...}}.
type Event struct {
	Type        Type  `json:"type"`
	Data        any   `json:"data"`
	ExecutionID int64 `json:"-"`
}

// LogData accompanies TypeLog.
type LogData struct {
	ExecutionID int64  `json:"execution_id"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	NodeID      string `json:"node_id,omitempty"`
}

// NodeData accompanies node_started and node_completed.
type NodeData struct {
	ExecutionID int64  `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`
	ItemIndex   *int   `json:"video_index,omitempty"`
}

// ScannedData accompanies videos_scanned.
type ScannedData struct {
	ExecutionID int64                    `json:"execution_id"`
	Videos      []execution.ItemProgress `json:"videos"`
	Total       int                      `json:"total"`
}

// ItemData accompanies video_started, video_completed and video_failed.
// ItemIndex is 0-based.
type ItemData struct {
	ExecutionID int64  `json:"execution_id"`
	ItemIndex   int    `json:"video_index"`
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Progress    string `json:"progress,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StageUpdateData accompanies video_stage_update.
type StageUpdateData struct {
	ExecutionID int64                 `json:"execution_id"`
	ItemIndex   int                   `json:"video_index"`
	Stage       string                `json:"stage"`
	Status      execution.StageStatus `json:"status"`
}

// WorkflowData accompanies workflow_completed and workflow_failed.
type WorkflowData struct {
	ExecutionID int64            `json:"execution_id"`
	Status      execution.Status `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// New builds an event bound to an execution.
func New(typ Type, executionID int64, data any) Event {
	return Event{Type: typ, Data: data, ExecutionID: executionID}
}
