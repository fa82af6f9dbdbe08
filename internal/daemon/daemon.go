package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/eventbridge"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	engine    *workflow.Engine
	scheduler *scheduler.Scheduler
	forwarder *eventbridge.KafkaForwarder
	logHub    *logging.StreamHub
	metrics   *metrics.Metrics
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	bg      sync.WaitGroup
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithScheduler enables cron triggering of scheduled workflows.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(d *Daemon) { d.scheduler = s }
}

// WithForwarder enables Kafka export of execution events.
func WithForwarder(f *eventbridge.KafkaForwarder) Option {
	return func(d *Daemon) { d.forwarder = f }
}

// WithLogStream exposes hub through `GET /api/logs`.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.logHub = hub }
}

// WithMetrics serves m on `/metrics`.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// LockPath is the flock file that guards against concurrent daemons.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "mediaflow.lock")
}

// Running reports whether another process holds the daemon lock.
func Running(cfg *config.Config) (bool, error) {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = lock.Unlock()
	}
	return !ok, nil
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, engine *workflow.Engine, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || engine == nil {
		return nil, errors.New("daemon requires config, store, and workflow engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		engine:   engine,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the scheduler, the event
// forwarder and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.scheduler != nil {
		if err := d.scheduler.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		if d.scheduler != nil {
			_ = d.scheduler.Stop(context.WithoutCancel(ctx))
		}
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	if d.forwarder != nil {
		d.bg.Go(func() {
			if err := d.forwarder.Run(runCtx); err != nil {
				d.logger.Warn("event forwarder stopped",
					logging.Error(err),
					logging.String(logging.FieldEventType, "event_forwarder_stopped"),
					logging.String(logging.FieldErrorHint, "restart the daemon once the brokers are reachable"),
					logging.String(logging.FieldImpact, "execution events are no longer exported"),
				)
			}
		})
	}

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop shuts the API server, scheduler and engine down in parallel, then
// releases the daemon lock. Running executions get until ctx ends to finish.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}

	group, groupCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	group.Go(func() error { return d.api.stop(groupCtx) })
	if d.scheduler != nil {
		group.Go(func() error { return d.scheduler.Stop(ctx) })
	}
	group.Go(func() error { return d.engine.Stop(ctx) })
	err := group.Wait()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	d.bg.Wait()

	if uerr := d.lock.Unlock(); uerr != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(uerr),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start reports another instance"),
			logging.String(logging.FieldImpact, "a restart may be refused"),
		)
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped")
	return err
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	stopErr := d.Stop(context.Background())
	if err := d.store.Close(); err != nil {
		return err
	}
	return stopErr
}

// Handler exposes the API router.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Address reports the bound API address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	summary := d.engine.Status(ctx)
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.address(),
		LockFilePath: d.lockPath,
		Database:     d.store.CheckHealth(ctx),
		Engine: api.EngineStatus{
			ActiveExecutions: summary.Active,
			Executions:       api.ExecutionCounts(summary.Executions),
			Pool:             summary.Pool,
			EventObservers:   summary.Observers,
			StageHealth:      summary.StageHealth,
		},
		Scheduled:   []scheduler.Entry{},
		KafkaExport: d.forwarder != nil,
	}
	if status.Engine.ActiveExecutions == nil {
		status.Engine.ActiveExecutions = []int64{}
	}
	if d.scheduler != nil {
		status.Scheduled = d.scheduler.Entries()
	}
	return status
}

// resync refreshes the scheduler after a workflow changed.
func (d *Daemon) resync(ctx context.Context) {
	if d.scheduler == nil {
		return
	}
	if err := d.scheduler.Resync(ctx); err != nil {
		logging.WarnWithContext(d.logger, "scheduler resync failed", "scheduler_resync_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "schedule changes apply after the next restart"),
		)
	}
}
