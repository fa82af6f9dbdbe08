// Package scheduler triggers stored workflows on their cron schedules.
//
// Schedules use the standard five-field cron syntax plus the robfig
// descriptors (@hourly, @every 10m, ...). The scheduler mirrors the set of
// active scheduled workflows; callers invoke Resync after creating,
// updating or deleting a workflow.
package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mediaflow/internal/execution"
	"mediaflow/internal/logging"
	"mediaflow/internal/store"
)

// Source lists the workflows that should be scheduled.
type Source interface {
	ScheduledWorkflows(ctx context.Context) ([]*store.Workflow, error)
}

// Triggerer starts a workflow execution.
type Triggerer interface {
	Trigger(ctx context.Context, workflowID int64) (*execution.Record, error)
}

// Entry describes one scheduled workflow.
type Entry struct {
	WorkflowID int64     `json:"workflow_id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	Next       time.Time `json:"next_run"`
}

type scheduled struct {
	expr    string
	name    string
	entryID cron.EntryID
}

// Scheduler owns a cron runner whose jobs trigger workflows.
type Scheduler struct {
	cron    *cron.Cron
	source  Source
	trigger Triggerer
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    map[int64]scheduled
	baseCtx context.Context
	started bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether expr is an accepted schedule expression.
func Validate(expr string) error {
	if _, err := parser.Parse(strings.TrimSpace(expr)); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// New constructs a scheduler. It does nothing until Start.
func New(source Source, trigger Triggerer, logger *slog.Logger) *Scheduler {
	logger = logging.NewComponentLogger(logger, "scheduler")
	cronLog := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		source:  source,
		trigger: trigger,
		logger:  logger,
		jobs:    make(map[int64]scheduled),
		baseCtx: context.Background(),
	}
}

// Start loads the schedules and starts the cron runner. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	if err := s.Resync(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", logging.Int("scheduled_workflows", len(s.Entries())))
	return nil
}

// Resync reconciles cron entries with the source. Workflows whose schedule
// cannot be parsed are skipped with a warning.
func (s *Scheduler) Resync(ctx context.Context) error {
	workflows, err := s.source.ScheduledWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]*store.Workflow, len(workflows))
	for _, wf := range workflows {
		wanted[wf.ID] = wf
	}
	for id, job := range s.jobs {
		wf, ok := wanted[id]
		if ok && strings.TrimSpace(wf.Schedule) == job.expr {
			continue
		}
		s.cron.Remove(job.entryID)
		delete(s.jobs, id)
		s.logger.Info("workflow unscheduled", logging.Int64(logging.FieldWorkflowID, id))
	}
	for id, wf := range wanted {
		if _, ok := s.jobs[id]; ok {
			continue
		}
		expr := strings.TrimSpace(wf.Schedule)
		entryID, err := s.cron.AddFunc(expr, s.job(id, wf.Name))
		if err != nil {
			logging.WarnWithContext(s.logger, "invalid workflow schedule", "schedule_invalid",
				logging.Int64(logging.FieldWorkflowID, id),
				logging.String("schedule", expr),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "use five-field cron syntax or an @ descriptor"),
				logging.String(logging.FieldImpact, "workflow is not triggered automatically"),
			)
			continue
		}
		s.jobs[id] = scheduled{expr: expr, name: wf.Name, entryID: entryID}
		s.logger.Info("workflow scheduled",
			logging.Int64(logging.FieldWorkflowID, id),
			logging.String("schedule", expr),
		)
	}
	return nil
}

func (s *Scheduler) job(workflowID int64, name string) func() {
	return func() {
		s.mu.Lock()
		ctx := s.baseCtx
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		rec, err := s.trigger.Trigger(ctx, workflowID)
		if err != nil {
			logging.WarnWithContext(s.logger, "scheduled trigger failed", "schedule_trigger_failed",
				logging.Int64(logging.FieldWorkflowID, workflowID),
				logging.String("workflow", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the workflow still exists and is active"),
				logging.String(logging.FieldImpact, "this scheduled run is skipped"),
			)
			return
		}
		s.logger.Info("scheduled execution started",
			logging.Int64(logging.FieldWorkflowID, workflowID),
			logging.Int64(logging.FieldExecutionID, rec.ID),
		)
	}
}

// Entries lists scheduled workflows ordered by workflow id.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for id, job := range s.jobs {
		out = append(out, Entry{
			WorkflowID: id,
			Name:       job.name,
			Schedule:   job.expr,
			Next:       s.cron.Entry(job.entryID).Next,
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.WorkflowID, b.WorkflowID) })
	return out
}

// Stop halts the cron runner and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, logging.Error(err))...)
}
