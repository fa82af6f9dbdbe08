package workflow

import (
	"context"
	"errors"
	"time"

	"mediaflow/internal/events"
	"mediaflow/internal/execution"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
)

// Log levels carried by log events.
const (
	levelInfo    = "info"
	levelWarning = "warning"
	levelError   = "error"
)

// log appends a line to the execution log, mirrors it to slog and broadcasts
// it as a log event.
func (r *run) log(ctx context.Context, level, message, nodeID string) {
	now := time.Now()
	line := execution.FormatLogEntry(now, message)
	r.mu.Lock()
	r.pending = append(r.pending, line)
	r.mu.Unlock()

	logger := logging.WithContext(ctx, r.logger)
	var attrs []logging.Attr
	if nodeID != "" {
		attrs = append(attrs, logging.String(logging.FieldNodeID, nodeID))
	}
	switch level {
	case levelError:
		logger.Error(message, logging.Args(attrs...)...)
	case levelWarning:
		logger.Warn(message, logging.Args(attrs...)...)
	default:
		logger.Info(message, logging.Args(attrs...)...)
	}

	r.publish(events.TypeLog, events.LogData{
		ExecutionID: r.id,
		Message:     message,
		Timestamp:   now.Format(time.RFC3339Nano),
		Level:       level,
		NodeID:      nodeID,
	})
}

func (r *run) publish(typ events.Type, data any) {
	r.engine.broadcaster.Publish(events.New(typ, r.id, data))
}

func (r *run) publishStage(index int, key string, status execution.StageStatus) {
	r.publish(events.TypeStageUpdate, events.StageUpdateData{
		ExecutionID: r.id,
		ItemIndex:   index,
		Stage:       key,
		Status:      status,
	})
}

// notify sends a notification without holding up the coordinator. Stop waits
// for outstanding sends.
func (r *run) notify(event notifications.Event, payload notifications.Payload) {
	e := r.engine
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.notifier.Publish(context.Background(), event, payload); err != nil {
			if errors.Is(err, context.Canceled) {
				e.logger.Debug("notification canceled", logging.String("event", string(event)))
				return
			}
			logging.WarnWithContext(e.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Int64(logging.FieldExecutionID, r.id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "the notification was not delivered"),
			)
		}
	}()
}

// nodeReporter routes handler progress lines into the execution log.
type nodeReporter struct {
	run    *run
	ctx    context.Context
	nodeID string
}

func (n nodeReporter) Info(message string) { n.run.log(n.ctx, levelInfo, message, n.nodeID) }
func (n nodeReporter) Warn(message string) { n.run.log(n.ctx, levelWarning, message, n.nodeID) }
