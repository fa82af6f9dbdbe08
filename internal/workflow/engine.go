package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/notifications"
	"mediaflow/internal/stage"
	"mediaflow/internal/store"
	"mediaflow/internal/workerpool"
)

// StartedMessage is the first execution-log line of every run.
const StartedMessage = "Workflow execution started"

var (
	// ErrStopped is returned when triggering a run after Stop.
	ErrStopped = errors.New("workflow engine stopped")
	// ErrWorkflowInactive is returned when triggering a deleted workflow.
	ErrWorkflowInactive = errors.New("workflow is inactive")
)

// Engine owns the process-wide collaborators shared by every execution.
type Engine struct {
	cfg         *config.Config
	store       *store.Store
	registry    *stage.Registry
	pool        *workerpool.Pool
	broadcaster *events.Broadcaster
	controls    *execution.Controls
	notifier    notifications.Service
	metrics     *metrics.Metrics
	logger      *slog.Logger

	ownsPool        bool
	ownsBroadcaster bool

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	stopped bool
	done    map[int64]chan struct{}
	wg      sync.WaitGroup
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMetrics records execution metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPool injects a shared worker pool. The engine will not shut it down.
func WithPool(p *workerpool.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithBroadcaster injects a shared broadcaster. The engine will not close it.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

// NewEngine constructs an engine. A pool and broadcaster sized from cfg are
// created when none are injected.
func NewEngine(cfg *config.Config, st *store.Store, registry *stage.Registry, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    st,
		registry: registry,
		controls: execution.NewControls(),
		done:     make(map[int64]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = logging.NewComponentLogger(e.logger, "workflow")
	if e.notifier == nil {
		e.notifier = notifications.NewService(cfg)
	}
	if e.pool == nil {
		e.pool = workerpool.New(cfg.Workflow.WorkerCount, e.logger)
		e.ownsPool = true
	}
	if e.broadcaster == nil {
		e.broadcaster = events.NewBroadcaster(cfg.Workflow.EventBuffer, events.WithRecorder(e.metrics))
		e.ownsBroadcaster = true
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Broadcaster exposes the event broadcaster for observers.
func (e *Engine) Broadcaster() *events.Broadcaster { return e.broadcaster }

// Registry exposes the stage registry.
func (e *Engine) Registry() *stage.Registry { return e.registry }

// Trigger starts an asynchronous run of a stored, active workflow and returns
// the freshly created execution record.
func (e *Engine) Trigger(ctx context.Context, workflowID int64) (*execution.Record, error) {
	if e.isStopped() {
		return nil, ErrStopped
	}
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.IsActive {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, ErrWorkflowInactive)
	}
	return e.launch(ctx, wf)
}

// RunDefinition stores def as an inactive workflow named name and starts a
// run of it. It backs one-shot executions of definition files.
func (e *Engine) RunDefinition(ctx context.Context, name string, def graph.Definition) (*execution.Record, error) {
	if e.isStopped() {
		return nil, ErrStopped
	}
	wf, err := e.store.CreateWorkflow(ctx, store.Workflow{
		Name:        name,
		Description: "one-shot run",
		Definition:  def,
		IsActive:    false,
	})
	if err != nil {
		return nil, err
	}
	return e.launch(ctx, wf)
}

func (e *Engine) launch(ctx context.Context, wf *store.Workflow) (*execution.Record, error) {
	rec, err := e.store.CreateExecution(ctx, wf.ID, execution.FormatLogEntry(time.Now(), StartedMessage))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		// The record exists already; close it so it does not linger as running.
		_, _ = e.store.FinalizeExecution(context.WithoutCancel(ctx), rec.ID, execution.StatusFailed, ErrStopped.Error())
		return nil, ErrStopped
	}
	done := make(chan struct{})
	e.done[rec.ID] = done
	control := e.controls.Register(rec.ID)
	e.wg.Add(1)
	e.mu.Unlock()

	r := newRun(e, rec, wf, control)
	e.metrics.ExecutionStarted()
	e.logger.Info("workflow execution started",
		logging.Int64(logging.FieldExecutionID, rec.ID),
		logging.Int64(logging.FieldWorkflowID, wf.ID),
		logging.String("workflow", wf.Name),
		logging.String(logging.FieldEventType, "execution_start"),
	)

	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.done, rec.ID)
			e.mu.Unlock()
			e.controls.Remove(rec.ID)
			close(done)
		}()
		r.execute(e.baseCtx)
	}()
	return rec, nil
}

// Wait blocks until execution id, started by this engine, has finished or ctx
// ends. Executions unknown to the engine return immediately.
func (e *Engine) Wait(ctx context.Context, id int64) error {
	e.mu.Lock()
	done, ok := e.done[id]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel marks an execution cancelled. The running coordinator, in this or
// another process, stops before the next item.
func (e *Engine) Cancel(ctx context.Context, id int64) error {
	if err := e.store.CancelExecution(ctx, id); err != nil {
		return err
	}
	e.controls.Cancel(id)
	e.logger.Info("workflow execution cancel requested",
		logging.Int64(logging.FieldExecutionID, id),
		logging.String(logging.FieldEventType, "execution_cancel"),
	)
	return nil
}

// Active lists executions running in this process.
func (e *Engine) Active() []int64 { return e.controls.Active() }

// Stop refuses new runs and waits for in-flight runs. When ctx ends first the
// runs' context is cancelled, which interrupts running stage tools, and Stop
// waits for the coordinators to record the interruption.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		err = ctx.Err()
		e.logger.Warn("workflow stop deadline reached; interrupting running executions",
			logging.Any("executions", e.controls.Active()),
			logging.String(logging.FieldEventType, "engine_stop_timeout"),
			logging.String(logging.FieldErrorHint, "raise workflow.shutdown_timeout to let long stages finish"),
			logging.String(logging.FieldImpact, "running executions are marked failed"),
		)
		e.cancel()
		<-finished
	}
	e.cancel()

	if e.ownsPool {
		if perr := e.pool.Shutdown(context.WithoutCancel(ctx)); perr != nil && err == nil {
			err = perr
		}
	}
	if e.ownsBroadcaster {
		e.broadcaster.Close()
	}
	return err
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Validate resolves def and checks it against the registry without running
// it. The returned pipeline carries any first-edge warnings.
func (e *Engine) Validate(def graph.Definition) (*graph.Pipeline, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := graph.Resolve(def, e.registry.IsDiscovery, graph.Options{Strict: e.cfg.Workflow.StrictGraph})
	if err != nil {
		return nil, err
	}
	if err := e.registry.ValidatePipeline(pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}
