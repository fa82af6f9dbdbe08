package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/logs"
	"mediaflow/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var component string
	var executionID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: "Show recent daemon log events from the API. When the daemon is not\n" +
			"reachable the log file is read instead; filters need the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("api address: %w", err)
			}

			streamCtx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				streamCtx, stop = signal.NotifyContext(streamCtx, os.Interrupt, syscall.SIGTERM)
				defer stop()
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(streamCtx, client, logstream.Options{
				Lines:   lines,
				Follow:  follow,
				LogPath: daemonrun.LogPath(cfg),
				Filters: logstream.Filters{Component: component, ExecutionID: executionID},
			},
				func(evt api.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if errors.Is(err, logstream.ErrFiltersRequireAPI) {
				return fmt.Errorf("the daemon API is not reachable at %s; filters need a running daemon", cfg.Paths.APIBind)
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new entries")
	cmd.Flags().StringVar(&component, "component", "", "Only show entries from this component")
	cmd.Flags().Int64Var(&executionID, "execution", 0, "Only show entries for this execution id")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	writeLogPrefix(&b, evt)
	b.WriteString(evt.Message)
	for _, key := range slices.Sorted(maps.Keys(evt.Fields)) {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	return b.String()
}

func writeLogPrefix(w io.Writer, evt api.LogEvent) {
	ts := "-"
	if !evt.Timestamp.IsZero() {
		ts = evt.Timestamp.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(w, "%s %-5s ", ts, strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(w, "[%s] ", evt.Component)
	}
	if evt.ExecutionID > 0 {
		fmt.Fprintf(w, "#%d ", evt.ExecutionID)
	}
}
