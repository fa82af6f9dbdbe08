package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/events"
	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/notifications"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
	"mediaflow/internal/store"
	"mediaflow/internal/workerpool"
)

// Execution-log messages written by the coordinator.
const (
	CancelledByUserMessage = "Workflow execution cancelled by user"
	InterruptedMessage     = "interrupted by daemon shutdown"
)

// CoordinatorFault reports a panic raised by the coordinator itself rather
// than by a stage handler.
type CoordinatorFault struct {
	Value any
	Stack string
}

func (f *CoordinatorFault) Error() string {
	return fmt.Sprintf("coordinator fault: %v", f.Value)
}

// run is the coordinator of one execution. Only its own goroutine touches
// results; pending log lines may also be appended by stage reporters.
type run struct {
	engine   *Engine
	id       int64
	workflow *store.Workflow
	control  *execution.Control
	logger   *slog.Logger
	started  time.Time

	mu      sync.Mutex
	pending []string

	results     execution.Results
	cancelled   bool
	interrupted bool
}

func newRun(e *Engine, rec *execution.Record, wf *store.Workflow, control *execution.Control) *run {
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	return &run{
		engine:   e,
		id:       rec.ID,
		workflow: wf,
		control:  control,
		logger:   e.logger.With(logging.Int64(logging.FieldWorkflowID, wf.ID)),
		started:  started,
	}
}

func (r *run) execute(ctx context.Context) {
	ctx = services.WithExecutionID(ctx, r.id)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	r.finish(ctx, r.coordinate(ctx))
}

func (r *run) coordinate(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &CoordinatorFault{Value: rec, Stack: string(debug.Stack())}
		}
	}()

	e := r.engine
	pipeline, err := graph.Resolve(r.workflow.Definition, e.registry.IsDiscovery, graph.Options{Strict: e.cfg.Workflow.StrictGraph})
	if err != nil {
		return err
	}
	for _, warning := range pipeline.Warnings {
		r.log(ctx, levelWarning, warning, "")
	}
	if err := e.registry.ValidatePipeline(pipeline); err != nil {
		return err
	}

	items, err := r.discover(ctx, pipeline.Discovery)
	if err != nil {
		if e.cfg.Workflow.FailOnDiscoveryError || ctx.Err() != nil {
			return err
		}
		r.log(ctx, levelWarning, fmt.Sprintf("Discovery failed, continuing with no videos: %s", services.Message(err)), pipeline.Discovery.ID)
		items = nil
	}

	keys := stageKeys(pipeline.Stages)
	r.results.ScannedVideosCount = len(items)
	r.results.ScannedVideos = make([]execution.ItemProgress, len(items))
	for i, item := range items {
		r.results.ScannedVideos[i] = execution.NewItemProgress(item.ID, item.Title, item.ThumbnailURL, keys)
	}
	r.snapshot(ctx)

	if len(items) == 0 {
		return nil
	}

	r.log(ctx, levelInfo, fmt.Sprintf("Processing %d videos sequentially through pipeline...", len(items)), "")
	r.publish(events.TypeItemsScanned, events.ScannedData{
		ExecutionID: r.id,
		Videos:      r.progressSnapshot(),
		Total:       len(items),
	})

	for i, item := range items {
		if r.stopRequested(ctx) {
			break
		}
		r.processItem(ctx, i, len(items), item, pipeline.Stages, keys)
		r.snapshot(ctx)
	}
	if ctx.Err() != nil && !r.cancelled && !r.interrupted {
		r.interrupted = true
		r.log(ctx, levelWarning, "Workflow execution "+InterruptedMessage, "")
	}
	return nil
}

func (r *run) discover(ctx context.Context, node graph.Node) ([]stage.Item, error) {
	discoverer, ok := r.engine.registry.Discoverer(node.Type)
	if !ok {
		return nil, graph.NewConfigError(graph.ReasonUnknownStageType, node.ID, fmt.Sprintf("no discoverer registered for %q", node.Type))
	}
	var items []stage.Item
	err := r.runNode(ctx, node, nil, func(ctx context.Context, req stage.Request) error {
		found, err := discoverer.Discover(ctx, req)
		items = found
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// stopRequested is the item-boundary check. It consults the in-process flag
// first and falls back to the stored status so cancellations written by
// another process are seen too.
func (r *run) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.interrupted = true
		r.log(ctx, levelWarning, "Workflow execution "+InterruptedMessage, "")
		return true
	}
	cancelled := r.control.Cancelled()
	if !cancelled {
		status, err := r.engine.store.ExecutionStatus(ctx, r.id)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to read execution status", "cancel_check",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cancellation may be noticed one item later"),
			)
		} else if status == execution.StatusCancelled {
			cancelled = true
		}
	}
	if cancelled {
		r.cancelled = true
		r.log(ctx, levelWarning, CancelledByUserMessage, "")
	}
	return cancelled
}

func (r *run) processItem(ctx context.Context, index, total int, item stage.Item, stages []graph.Node, keys []string) {
	position := index + 1
	progress := &r.results.ScannedVideos[index]
	progress.Status = execution.ItemProcessing

	ctx = services.WithItemIndex(ctx, position)
	ctx = services.WithRequestID(ctx, uuid.NewString())

	r.publish(events.TypeItemStarted, events.ItemData{
		ExecutionID: r.id,
		ItemIndex:   index,
		VideoID:     item.ID,
		Title:       item.Title,
		Progress:    fmt.Sprintf("%d/%d", position, total),
	})
	r.log(ctx, levelInfo, fmt.Sprintf("[%d/%d] Processing video: %s", position, total, displayTitle(item)), "")

	current := stage.NewItemContext(position, item)
	for i, node := range stages {
		key := keys[i]
		progress.CurrentStage = &key
		progress.Stages[key] = execution.StageRunning
		r.publishStage(index, key, execution.StageRunning)

		next, err := r.runStage(ctx, node, index, current)
		if err != nil {
			progress.Stages[key] = execution.StageFailed
			r.failItem(ctx, index, total, item, err)
			return
		}
		current = next
		progress.Stages[key] = execution.StageCompleted
		r.publishStage(index, key, execution.StageCompleted)
	}

	progress.Status = execution.ItemCompleted
	progress.CurrentStage = nil
	r.publish(events.TypeItemCompleted, events.ItemData{
		ExecutionID: r.id,
		ItemIndex:   index,
		VideoID:     item.ID,
		Title:       item.Title,
	})
	r.results.Merge(current)
	r.engine.metrics.ItemProcessed(metrics.ItemCompleted)
	r.log(ctx, levelInfo, fmt.Sprintf("[%d/%d] Completed processing for: %s", position, total, displayTitle(item)), "")
}

func (r *run) failItem(ctx context.Context, index, total int, item stage.Item, err error) {
	message := services.Message(err)
	progress := &r.results.ScannedVideos[index]
	progress.Status = execution.ItemFailed
	progress.Error = message

	r.publish(events.TypeItemFailed, events.ItemData{
		ExecutionID: r.id,
		ItemIndex:   index,
		VideoID:     item.ID,
		Title:       item.Title,
		Error:       message,
	})
	r.log(ctx, levelError, fmt.Sprintf("[%d/%d] Failed to process: %s", index+1, total, message), "")
	r.engine.metrics.ItemProcessed(metrics.ItemFailed)
	r.notify(notifications.EventItemFailed, notifications.Payload{
		"workflow":    r.workflow.Name,
		"executionID": r.id,
		"title":       item.Title,
		"error":       message,
	})
}

// runStage invokes a pipeline handler against a copy of item. The copy is
// returned only when the handler succeeds.
func (r *run) runStage(ctx context.Context, node graph.Node, index int, item *stage.ItemContext) (*stage.ItemContext, error) {
	handler, ok := r.engine.registry.Handler(node.Type)
	if !ok {
		return nil, graph.NewConfigError(graph.ReasonUnknownStageType, node.ID, fmt.Sprintf("no handler registered for %q", node.Type))
	}
	work := item.Clone()
	err := r.runNode(ctx, node, &index, func(ctx context.Context, req stage.Request) error {
		req.Item = work
		return handler.Execute(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return work, nil
}

// runNode performs one node call on the worker pool, bracketed by node events
// and stage logging.
func (r *run) runNode(ctx context.Context, node graph.Node, index *int, call func(context.Context, stage.Request) error) error {
	ctx = services.WithStage(ctx, node.Type)
	r.log(ctx, levelInfo, fmt.Sprintf("Executing node: %s (%s)", node.Label(), node.Type), node.ID)
	r.publish(events.TypeNodeStarted, events.NodeData{ExecutionID: r.id, NodeID: node.ID, NodeType: node.Type, ItemIndex: index})

	req := stage.Request{
		ExecutionID: r.id,
		NodeID:      node.ID,
		Config:      stage.Config(node.Config()),
		Report:      nodeReporter{run: r, ctx: ctx, nodeID: node.ID},
	}
	start := time.Now()
	_, err := workerpool.Do(ctx, r.engine.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx, req)
	})
	elapsed := time.Since(start)
	r.engine.metrics.ObserveStage(node.Type, elapsed)

	logger := logging.WithContext(ctx, r.logger)
	if err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String(logging.FieldNodeID, node.ID),
			logging.Duration("stage_duration", elapsed),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, errorHint(err)),
			logging.Error(err),
		)
		r.log(ctx, levelError, fmt.Sprintf("Error in node %s: %s", node.Label(), services.Message(err)), node.ID)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldNodeID, node.ID),
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", elapsed),
	)
	r.publish(events.TypeNodeCompleted, events.NodeData{ExecutionID: r.id, NodeID: node.ID, NodeType: node.Type, ItemIndex: index})
	return nil
}

func (r *run) finish(ctx context.Context, runErr error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, r.logger)

	status := execution.StatusCompleted
	errorMessage := ""
	switch {
	case runErr != nil:
		status = execution.StatusFailed
		errorMessage = services.Message(runErr)
		r.log(ctx, levelError, "Workflow execution failed: "+errorMessage, "")
		if fault, ok := runErr.(*CoordinatorFault); ok {
			logging.ErrorWithContext(logger, "coordinator panic", "coordinator_fault",
				logging.Any("panic", fault.Value),
				logging.String("stack", fault.Stack),
			)
		}
	case r.interrupted:
		status = execution.StatusFailed
		errorMessage = InterruptedMessage
	case r.cancelled:
		status = execution.StatusCancelled
	}

	r.snapshot(ctx)
	applied, err := r.engine.store.FinalizeExecution(ctx, r.id, status, errorMessage)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to finalize execution", "finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health; the execution may be reclaimed on restart"),
		)
	} else if !applied {
		if current, serr := r.engine.store.ExecutionStatus(ctx, r.id); serr == nil {
			status = current
			if current == execution.StatusCancelled {
				errorMessage = ""
			}
		}
	}

	r.engine.metrics.ExecutionFinished(string(status))
	duration := time.Since(r.started)
	logger.Info("workflow execution finished",
		logging.String("status", string(status)),
		logging.Int("processed", r.results.ProcessedCount),
		logging.Int("scanned", r.results.ScannedVideosCount),
		logging.Duration("duration", duration),
		logging.String(logging.FieldEventType, "execution_complete"),
	)

	if status == execution.StatusFailed {
		r.publish(events.TypeWorkflowFailed, events.WorkflowData{ExecutionID: r.id, Status: status, Error: errorMessage})
		r.notify(notifications.EventWorkflowFailed, notifications.Payload{
			"workflow":    r.workflow.Name,
			"executionID": r.id,
			"error":       errorMessage,
		})
		return
	}
	r.publish(events.TypeWorkflowCompleted, events.WorkflowData{ExecutionID: r.id, Status: status})
	if status == execution.StatusCompleted {
		r.notify(notifications.EventWorkflowCompleted, notifications.Payload{
			"workflow":    r.workflow.Name,
			"executionID": r.id,
			"processed":   r.results.ProcessedCount,
			"total":       r.results.ScannedVideosCount,
			"duration":    duration,
		})
	}
}

// snapshot persists pending log lines and the current results. Lines that
// fail to persist are kept for the next attempt.
func (r *run) snapshot(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	r.mu.Lock()
	lines := r.pending
	r.pending = nil
	r.mu.Unlock()

	if err := r.engine.store.SaveSnapshot(ctx, r.id, lines, r.results.Clone()); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to persist execution snapshot", "snapshot_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "stored progress lags behind the running execution"),
		)
		r.mu.Lock()
		r.pending = append(lines, r.pending...)
		r.mu.Unlock()
	}
}

func (r *run) progressSnapshot() []execution.ItemProgress {
	out := make([]execution.ItemProgress, len(r.results.ScannedVideos))
	for i, p := range r.results.ScannedVideos {
		out[i] = p.Clone()
	}
	return out
}

// stageKeys names the per-item stage slots. A type appearing more than once
// gets a numeric suffix from its second occurrence on.
func stageKeys(nodes []graph.Node) []string {
	keys := make([]string, len(nodes))
	seen := make(map[string]int, len(nodes))
	for i, node := range nodes {
		seen[node.Type]++
		if n := seen[node.Type]; n > 1 {
			keys[i] = fmt.Sprintf("%s_%d", node.Type, n)
			continue
		}
		keys[i] = node.Type
	}
	return keys
}

func displayTitle(item stage.Item) string {
	if item.Title == "" {
		return "Unknown"
	}
	return item.Title
}

func errorHint(err error) string {
	switch services.Kind(err) {
	case "configuration", "validation":
		return "check the node configuration in the workflow definition"
	case "external_tool":
		return "run mediaflow status to verify yt-dlp and ffmpeg"
	case "timeout":
		return "retry the execution; the remote service was slow"
	default:
		return "check the execution log for details"
	}
}
