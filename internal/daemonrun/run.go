package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/eventbridge"
	"mediaflow/internal/events"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/notifications"
	"mediaflow/internal/preflight"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
	"mediaflow/internal/workerpool"
	"mediaflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the mediaflow daemon and blocks until ctx ends or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := LogPath(cfg)
	logHub := logging.NewStreamHub(cfg.Logging.StreamCapacity)
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		Stream:      logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	if reclaimed, err := st.ReclaimInterrupted(signalCtx); err != nil {
		logger.Warn("failed to reclaim interrupted executions",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions"),
			logging.String(logging.FieldImpact, "stale executions keep reporting running"),
		)
	} else if reclaimed > 0 {
		logger.Info("marked interrupted executions failed", logging.Int64("count", reclaimed))
	}

	registry, err := NewRegistry(cfg, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("register stages: %w", err)
	}

	m := metrics.New()
	broadcaster := events.NewBroadcaster(cfg.Workflow.EventBuffer, events.WithRecorder(m))
	defer broadcaster.Close()
	pool := workerpool.New(cfg.Workflow.WorkerCount, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(shutdownCtx)
	}()

	engine := workflow.NewEngine(cfg, st, registry,
		workflow.WithLogger(logger),
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithMetrics(m),
		workflow.WithPool(pool),
		workflow.WithBroadcaster(broadcaster),
	)

	daemonOpts := []daemon.Option{daemon.WithLogStream(logHub), daemon.WithMetrics(m)}
	if cfg.Scheduler.Enabled {
		daemonOpts = append(daemonOpts, daemon.WithScheduler(scheduler.New(st, engine, logger)))
	}
	if cfg.KafkaEnabled() {
		daemonOpts = append(daemonOpts, daemon.WithForwarder(eventbridge.NewKafkaForwarder(cfg, broadcaster, logger)))
	}

	d, err := daemon.New(cfg, st, engine, logger, daemonOpts...)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("mediaflow daemon shutting down",
		logging.Any("active_executions", engine.Active()),
	)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		time.Duration(cfg.Workflow.ShutdownTimeoutSecond)*time.Second)
	defer cancelShutdown()
	return d.Stop(shutdownCtx)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `mediaflow status` for details"),
			logging.String(logging.FieldImpact, "stages depending on this check will fail"),
		)
	}
}

// LogPath is the daemon's plain log file.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "mediaflow.log")
}

// PIDPath is where a running daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "mediaflow.pid")
}

// ReadPID returns the recorded daemon pid, or 0 when none is recorded.
func ReadPID(cfg *config.Config) int {
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
