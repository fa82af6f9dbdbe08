package logging

import (
	"context"
	"log/slog"

	"mediaflow/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldExecutionID identifies the workflow execution a line belongs to.
	FieldExecutionID = "execution_id"
	// FieldWorkflowID identifies the stored workflow definition.
	FieldWorkflowID = "workflow_id"
	// FieldItemIndex is the 1-based index of the item being processed.
	FieldItemIndex = "item_index"
	// FieldStage is the stage type tag (scan, download, ...).
	FieldStage = "stage"
	// FieldNodeID is the graph node identifier.
	FieldNodeID = "node_id"
	// FieldCorrelationID carries HTTP request and run identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering (stage_start, item_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ExecutionIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldExecutionID, id))
	}
	if idx, ok := services.ItemIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldItemIndex, idx))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
