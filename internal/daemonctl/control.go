// Package daemonctl launches and stops a background mediaflow daemon.
//
// The daemon holds a flock for its lifetime and records its pid next to it;
// control decisions are based on those two files plus the `/api/status`
// endpoint, so they work from any process sharing the configuration.
package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/daemonrun"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates no process holds the daemon lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached `mediaflow serve` process in its own session and
// returns its pid. Output is discarded; the daemon writes its own log file.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// FetchStatus queries `/api/status` on the configured bind address.
func FetchStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(bind, "/")+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status returned %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

// WaitForStart polls the status endpoint until the daemon reports running.
func WaitForStart(ctx context.Context, cfg *config.Config, timeout time.Duration) (*api.DaemonStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		status, err := FetchStatus(ctx, cfg)
		if err == nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches the daemon unless one already holds the lock.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	running, err := daemon.Running(cfg)
	if err != nil {
		return StartResult{}, fmt.Errorf("check daemon lock: %w", err)
	}
	if running {
		return StartResult{State: StartStateAlreadyRunning, PID: daemonrun.ReadPID(cfg)}, nil
	}
	pid, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	status, err := WaitForStart(ctx, cfg, waitTimeout)
	if err != nil {
		return StartResult{PID: pid}, fmt.Errorf("%w (see %s)", err, daemonrun.LogPath(cfg))
	}
	if status.PID > 0 {
		pid = status.PID
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// StopAndTerminate sends SIGTERM to the daemon and waits for it to release
// its lock. A daemon still holding the lock after gracePeriod is killed.
func StopAndTerminate(ctx context.Context, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, err := daemon.Running(cfg)
	if err != nil {
		return StopResult{}, fmt.Errorf("check daemon lock: %w", err)
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid := daemonrun.ReadPID(cfg)
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon holds %s but no pid is recorded in %s", daemon.LockPath(cfg), daemonrun.PIDPath(cfg))
	}
	result := StopResult{PID: pid}
	if err := signalProcess(pid, unix.SIGTERM); err != nil {
		return result, err
	}
	if waitForRelease(ctx, cfg, gracePeriod) {
		return result, nil
	}
	if err := ForceKillProcess(cfg, pid); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then starts it.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}
	startResult, err := EnsureStarted(ctx, cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{WasRunning: stopErr == nil, Stop: stopResult, Start: startResult}, nil
}

// ForceKillProcess sends SIGKILL to pid and removes the stale pid file.
func ForceKillProcess(cfg *config.Config, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid daemon pid %d", pid)
	}
	if err := signalProcess(pid, unix.SIGKILL); err != nil {
		return err
	}
	if err := os.Remove(daemonrun.PIDPath(cfg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func signalProcess(pid int, sig unix.Signal) error {
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

func waitForRelease(ctx context.Context, cfg *config.Config, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if running, err := daemon.Running(cfg); err == nil && !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
	return false
}
