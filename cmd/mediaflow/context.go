package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

const cliLogName = "mediaflow-cli.log"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) flagPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.flagPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// localRuntime is an in-process engine used by commands that execute
// workflows without a daemon.
type localRuntime struct {
	cfg     *config.Config
	store   *store.Store
	engine  *workflow.Engine
	logger  *slog.Logger
	logPath string
}

// openRuntime builds an engine over the configured store. Log records go to
// the CLI log file; verbose additionally copies them to stderr.
func (c *commandContext) openRuntime(stderr io.Writer, verbose bool) (*localRuntime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(cfg.Paths.LogDir, cliLogName)
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if verbose {
		console, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: "console", OutputPaths: []string{"stderr"}})
		if err != nil {
			return nil, fmt.Errorf("init console logger: %w", err)
		}
		logger = logging.TeeLogger(logger, console.Handler())
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	registry, err := daemonrun.NewRegistry(cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("register stages: %w", err)
	}
	engine := workflow.NewEngine(cfg, st, registry,
		workflow.WithLogger(logger),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	return &localRuntime{cfg: cfg, store: st, engine: engine, logger: logger, logPath: logPath}, nil
}

// Close stops the engine, waiting up to the configured shutdown timeout, and
// closes the store.
func (r *localRuntime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Workflow.ShutdownTimeoutSecond)*time.Second)
	defer cancel()
	err := r.engine.Stop(ctx)
	if cerr := r.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
