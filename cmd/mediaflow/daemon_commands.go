package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/daemonctl"
)

const (
	daemonStartTimeout = 15 * time.Second
	daemonStopGrace    = 45 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string

	launchOptions := func() daemonctl.LaunchOptions {
		return daemonctl.LaunchOptions{ConfigPath: ctx.configPath, LogLevel: logLevel}
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the mediaflow daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg, exe, launchOptions(), daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d), API on %s\n", result.PID, cfg.Paths.APIBind)
			}
			return nil
		},
	}
	start.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, stopGrace(cfg.Workflow.ShutdownTimeoutSecond))
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			printStop(cmd, result)
			return nil
		},
	}

	restart := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(cmd.Context(), cfg, exe, launchOptions(),
				stopGrace(cfg.Workflow.ShutdownTimeoutSecond), daemonStartTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				printStop(cmd, result.Stop)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restart.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")

	return []*cobra.Command{start, stop, restart}
}

// stopGrace leaves the daemon its own shutdown timeout plus a margin before
// it is killed.
func stopGrace(shutdownSeconds int) time.Duration {
	grace := time.Duration(shutdownSeconds)*time.Second + 5*time.Second
	return max(grace, daemonStopGrace)
}

func printStop(cmd *cobra.Command, result daemonctl.StopResult) {
	if result.ForcedKill {
		fmt.Fprintf(cmd.OutOrStdout(), "Daemon did not stop in time; killed pid %d\n", result.PID)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (pid %d)\n", result.PID)
}
