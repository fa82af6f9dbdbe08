package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var name string
	var verbose bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "run <definition-file>",
		Short: "Execute a workflow definition file once and print its events",
		Long: "Execute a workflow definition (JSON, or YAML for .yaml/.yml files) in this\n" +
			"process without a daemon. The run is recorded in execution history.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			runName := strings.TrimSpace(name)
			if runName == "" {
				runName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			rt, err := ctx.openRuntime(cmd.ErrOrStderr(), verbose)
			if err != nil {
				return err
			}
			defer rt.Close()

			pipeline, err := rt.engine.Validate(def)
			if err != nil {
				return err
			}
			for _, warning := range pipeline.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
			}
			return followExecution(cmd, rt, raw, func(runCtx context.Context) (*execution.Record, error) {
				return rt.engine.RunDefinition(runCtx, runName, def)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name recorded for the run (defaults to the file name)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Copy engine logs to stderr")
	cmd.Flags().BoolVar(&raw, "json", false, "Print events as JSON lines")
	return cmd
}

// followExecution starts an execution via start, prints its events until it
// finishes, then prints the stored outcome. An interrupt cancels the
// execution and keeps waiting for the coordinator to record it. A failed
// execution is returned as an error.
func followExecution(cmd *cobra.Command, rt *localRuntime, raw bool, start func(context.Context) (*execution.Record, error)) error {
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Subscribe before starting so no early events are missed.
	ch, unsubscribe := rt.engine.Broadcaster().Subscribe(0)
	defer unsubscribe()

	rec, err := start(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if !raw {
		fmt.Fprintf(out, "Execution #%d started\n", rec.ID)
	}
	printer := &eventPrinter{out: out, colorize: colorize, raw: raw}

	interrupted := sigCtx.Done()
	for finished := false; !finished; {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(cmd.ErrOrStderr(), "Interrupt received; cancelling after the current item")
			if err := rt.engine.Cancel(context.WithoutCancel(sigCtx), rec.ID); err != nil && !errors.Is(err, execution.ErrAlreadyFinished) {
				return err
			}
		case evt, ok := <-ch:
			if !ok {
				finished = true
				continue
			}
			if evt.ExecutionID != rec.ID {
				continue
			}
			printer.print(evt)
			finished = isTerminal(evt)
		}
	}

	if err := rt.engine.Wait(cmd.Context(), rec.ID); err != nil {
		return err
	}
	final, err := rt.store.GetExecution(cmd.Context(), rec.ID)
	if err != nil {
		return err
	}
	if raw {
		if err := writeJSON(cmd, final); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out)
		printResults(out, final, colorize)
	}
	if final.Status == execution.StatusFailed {
		return fmt.Errorf("execution #%d failed: %s", final.ID, final.ErrorMessage)
	}
	return nil
}
