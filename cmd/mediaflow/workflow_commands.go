package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
	"mediaflow/internal/logging"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"workflows", "wf"},
		Short:   "Manage stored workflows",
	}
	cmd.AddCommand(newWorkflowListCommand(ctx))
	cmd.AddCommand(newWorkflowAddCommand(ctx))
	cmd.AddCommand(newWorkflowShowCommand(ctx))
	cmd.AddCommand(newWorkflowRemoveCommand(ctx))
	cmd.AddCommand(newWorkflowExecuteCommand(ctx))
	return cmd
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				workflows, err := st.ListWorkflows(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, workflows)
				}
				if len(workflows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workflows")
					return nil
				}
				rows := make([][]string, 0, len(workflows))
				for _, wf := range workflows {
					rows = append(rows, []string{
						strconv.FormatInt(wf.ID, 10),
						wf.Name,
						strconv.Itoa(len(wf.Definition.Nodes)),
						valueOr(wf.Schedule, "-"),
						formatTime(wf.UpdatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Nodes", "Schedule", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWorkflowAddCommand(ctx *commandContext) *cobra.Command {
	var name, description, schedule string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <definition-file>",
		Short: "Store a workflow from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			wfName := strings.TrimSpace(name)
			if wfName == "" {
				wfName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			schedule = strings.TrimSpace(schedule)
			if schedule != "" {
				if err := scheduler.Validate(schedule); err != nil {
					return err
				}
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				warnings, err := validateDefinition(cfg, def)
				if err != nil {
					return err
				}
				for _, warning := range warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
				}
				wf, err := st.CreateWorkflow(cmd.Context(), store.Workflow{
					Name:        wfName,
					Description: strings.TrimSpace(description),
					Definition:  def,
					Schedule:    schedule,
					IsActive:    !inactive,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added workflow #%d %s\n", wf.ID, wf.Name)
				if schedule != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Schedules take effect when the daemon next starts")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Workflow name (defaults to the file name)")
	cmd.Flags().StringVar(&description, "description", "", "Workflow description")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for scheduled runs")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Store the workflow without activating it")
	return cmd
}

// validateDefinition checks def against the stage registry without running it.
func validateDefinition(cfg *config.Config, def graph.Definition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	registry, err := daemonrun.NewRegistry(cfg, logging.NewNop())
	if err != nil {
		return nil, err
	}
	pipeline, err := graph.Resolve(def, registry.IsDiscovery, graph.Options{Strict: cfg.Workflow.StrictGraph})
	if err != nil {
		return nil, err
	}
	if err := registry.ValidatePipeline(pipeline); err != nil {
		return nil, err
	}
	return pipeline.Warnings, nil
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow and its recent executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				wf, err := st.GetWorkflow(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, wf)
				}
				runs, err := st.ListWorkflowExecutions(cmd.Context(), id)
				if err != nil {
					return err
				}
				printWorkflow(cmd, cfg, wf, runs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

const recentExecutions = 5

func printWorkflow(cmd *cobra.Command, cfg *config.Config, wf *store.Workflow, runs []*execution.Record) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	registry, _ := daemonrun.NewRegistry(cfg, logging.NewNop())

	lines := renderSectionHeader(fmt.Sprintf("Workflow #%d", wf.ID), colorize)
	activeKind := statusOK
	if !wf.IsActive {
		activeKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Name", statusInfo, wf.Name, colorize),
		renderStatusLine("Description", statusInfo, valueOr(wf.Description, "-"), colorize),
		renderStatusLine("Active", activeKind, yesNo(wf.IsActive), colorize),
		renderStatusLine("Schedule", statusInfo, valueOr(wf.Schedule, "-"), colorize),
		renderStatusLine("Created", statusInfo, formatTime(wf.CreatedAt), colorize),
		renderStatusLine("Updated", statusInfo, formatTime(wf.UpdatedAt), colorize),
	)
	if registry != nil {
		lines = append(lines, renderStatusLine("Pipeline", statusInfo, pipelineSummary(wf.Definition, registry.IsDiscovery), colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))

	if len(runs) == 0 {
		fmt.Fprintln(out, "\nNo executions")
		return
	}
	if len(runs) > recentExecutions {
		runs = runs[:recentExecutions]
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, executionTable(runs))
}

func newWorkflowRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Deactivate a workflow (history is kept)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if err := st.DeactivateWorkflow(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated workflow #%d\n", id)
				return nil
			})
		},
	}
}

func newWorkflowExecuteCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Run a stored workflow in this process and follow it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := ctx.openRuntime(cmd.ErrOrStderr(), verbose)
			if err != nil {
				return err
			}
			defer rt.Close()
			return followExecution(cmd, rt, raw, func(runCtx context.Context) (*execution.Record, error) {
				return rt.engine.Trigger(runCtx, id)
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Copy engine logs to stderr")
	cmd.Flags().BoolVar(&raw, "json", false, "Print events as JSON lines")
	return cmd
}
