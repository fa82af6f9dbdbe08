package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/execution"
	"mediaflow/internal/store"
	"mediaflow/internal/textutil"
)

const defaultHistoryLimit = 50

func newExecutionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"executions", "exec"},
		Short:   "Inspect and manage execution history",
	}
	cmd.AddCommand(newExecutionListCommand(ctx))
	cmd.AddCommand(newExecutionShowCommand(ctx))
	cmd.AddCommand(newExecutionCancelCommand(ctx))
	cmd.AddCommand(newExecutionDeleteCommand(ctx))
	return cmd
}

func newExecutionListCommand(ctx *commandContext) *cobra.Command {
	var workflowID int64
	var skip, limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				var (
					records []*execution.Record
					err     error
				)
				if workflowID > 0 {
					records, err = st.ListWorkflowExecutions(cmd.Context(), workflowID)
				} else {
					records, err = st.ListExecutions(cmd.Context(), max(skip, 0), limit)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No executions")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), executionTable(records))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&workflowID, "workflow", 0, "Only list executions of this workflow")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of executions to skip")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "Maximum executions to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func executionTable(records []*execution.Record) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			strconv.FormatInt(rec.WorkflowID, 10),
			string(rec.Status),
			fmt.Sprintf("%d/%d", rec.Results.ProcessedCount, rec.Results.ScannedVideosCount),
			formatTime(rec.StartedAt),
			formatDuration(rec.StartedAt, rec.CompletedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Workflow", "Status", "Items", "Started", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignRight},
	)
}

func newExecutionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var logLines int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an execution's outcome and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				rec, err := st.GetExecution(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				printResults(out, rec, shouldColorize(out))
				log := rec.Log
				if logLines > 0 && len(log) > logLines {
					log = log[len(log)-logLines:]
				}
				if len(log) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, strings.Join(log, "\n"))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&logLines, "lines", "n", 0, "Only show the last N log lines (0 shows all)")
	return cmd
}

func newExecutionCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running execution",
		Long:  "Mark an execution cancelled. The process running it stops before its next item.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if err := st.CancelExecution(cmd.Context(), id); err != nil {
					if errors.Is(err, execution.ErrAlreadyFinished) {
						return fmt.Errorf("execution #%d already finished", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Execution #%d cancelled\n", id)
				return nil
			})
		},
	}
}

func newExecutionDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a finished execution and its downloaded files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := ctx.openRuntime(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			deleted, err := rt.engine.DeleteExecution(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, execution.ErrRunning) {
					return fmt.Errorf("execution #%d is still running; cancel it first", id)
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted execution #%d (%d %s removed)\n", id, len(deleted), textutil.Plural(len(deleted), "file", "files"))
			for _, path := range deleted {
				fmt.Fprintf(out, "  removed %s\n", path)
			}
			return nil
		},
	}
}
