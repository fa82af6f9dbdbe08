package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/execution"
	"mediaflow/internal/logging"
	"mediaflow/internal/preflight"
	"mediaflow/internal/stage"
	"mediaflow/internal/store"
)

const statusCheckTimeout = 15 * time.Second

type checkReport struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type statusReport struct {
	ConfigPath    string                   `json:"config_path"`
	DaemonRunning bool                     `json:"daemon_running"`
	DaemonPID     int                      `json:"daemon_pid,omitempty"`
	APIBind       string                   `json:"api_bind,omitempty"`
	Database      store.Health             `json:"database"`
	Preflight     []checkReport            `json:"preflight"`
	Stages        []stage.Health           `json:"stages"`
	Executions    map[execution.Status]int `json:"executions"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), statusCheckTimeout)
			defer cancel()

			report, err := collectStatus(checkCtx, cfg, ctx.configPath)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			if failed := failedChecks(report); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, configPath string) (statusReport, error) {
	report := statusReport{ConfigPath: configPath, APIBind: cfg.Paths.APIBind}

	running, err := daemon.Running(cfg)
	if err != nil {
		return report, fmt.Errorf("check daemon lock: %w", err)
	}
	report.DaemonRunning = running
	if running {
		report.DaemonPID = daemonrun.ReadPID(cfg)
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		report.Preflight = append(report.Preflight, checkReport{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}

	registry, err := daemonrun.NewRegistry(cfg, logging.NewNop())
	if err != nil {
		return report, fmt.Errorf("register stages: %w", err)
	}
	report.Stages = registry.Health(ctx)

	st, err := store.Open(cfg)
	if err != nil {
		report.Database = store.Health{Path: cfg.DatabasePath(), Error: err.Error()}
		return report, nil
	}
	defer st.Close()
	report.Database = st.CheckHealth(ctx)
	if stats, err := st.ExecutionStats(ctx); err == nil {
		report.Executions = stats
	}
	return report, nil
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := renderSectionHeader("Mediaflow", colorize)

	configDetail := report.ConfigPath
	if configDetail == "" {
		configDetail = "defaults"
	}
	lines = append(lines, renderStatusLine("Config", statusInfo, configDetail, colorize))
	if report.DaemonRunning {
		detail := "Running"
		if report.DaemonPID > 0 {
			detail = fmt.Sprintf("Running (pid %d)", report.DaemonPID)
		}
		if report.APIBind != "" {
			detail += ", API " + report.APIBind
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	if report.Database.Error != "" {
		lines = append(lines, renderStatusLine("Database", statusError, report.Database.Error, colorize))
	} else {
		lines = append(lines, renderStatusLine("Database", statusOK, report.Database.Path, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Preflight", colorize)...)
	for _, check := range report.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Stages", colorize)...)
	for _, health := range report.Stages {
		if health.Ready {
			lines = append(lines, renderStatusLine(health.Name, statusOK, "Ready", colorize))
		} else {
			lines = append(lines, renderStatusLine(health.Name, statusError, health.Detail, colorize))
		}
	}

	if len(report.Executions) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Executions", colorize)...)
		statuses := make([]execution.Status, 0, len(report.Executions))
		for status := range report.Executions {
			statuses = append(statuses, status)
		}
		slices.Sort(statuses)
		for _, status := range statuses {
			lines = append(lines, renderStatusLine(string(status), executionKind(status), fmt.Sprintf("%d", report.Executions[status]), colorize))
		}
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func failedChecks(report statusReport) []string {
	var failed []string
	for _, check := range report.Preflight {
		if !check.Passed {
			failed = append(failed, check.Name)
		}
	}
	for _, health := range report.Stages {
		if !health.Ready {
			failed = append(failed, health.Name)
		}
	}
	if report.Database.Error != "" {
		failed = append(failed, "database")
	}
	return failed
}
