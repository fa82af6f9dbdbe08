package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mediaflow/internal/events"
	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
)

// eventPrinter renders broadcast events for one execution as terminal lines,
// or as JSON lines when raw is set.
type eventPrinter struct {
	out      io.Writer
	colorize bool
	raw      bool
	total    int
}

func (p *eventPrinter) print(evt events.Event) {
	if p.raw {
		data, err := json.Marshal(evt)
		if err == nil {
			fmt.Fprintln(p.out, string(data))
		}
		return
	}

	switch data := evt.Data.(type) {
	case events.LogData:
		fmt.Fprintf(p.out, "%-5s %s\n", logTag(data.Level), data.Message)
	case events.ScannedData:
		p.total = data.Total
	case events.ItemData:
		p.printItem(evt.Type, data)
	case events.StageUpdateData:
		if data.Status == execution.StageCompleted || data.Status == execution.StageFailed {
			fmt.Fprintf(p.out, "      %s: %s\n", data.Stage, data.Status)
		}
	case events.WorkflowData:
		message := string(data.Status)
		if data.Error != "" {
			message += ": " + data.Error
		}
		fmt.Fprintln(p.out, renderStatusLine("Workflow", executionKind(data.Status), message, p.colorize))
	}
}

func (p *eventPrinter) printItem(typ events.Type, data events.ItemData) {
	position := fmt.Sprintf("[%d/%d]", data.ItemIndex+1, p.total)
	switch typ {
	case events.TypeItemStarted:
		fmt.Fprintf(p.out, "%s %s\n", position, data.Title)
	case events.TypeItemCompleted:
		fmt.Fprintf(p.out, "%s completed\n", position)
	case events.TypeItemFailed:
		fmt.Fprintf(p.out, "%s failed: %s\n", position, data.Error)
	}
}

func logTag(level string) string {
	switch level {
	case "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// isTerminal reports whether evt ends its execution's event stream.
func isTerminal(evt events.Event) bool {
	return evt.Type == events.TypeWorkflowCompleted || evt.Type == events.TypeWorkflowFailed
}

// printResults writes the outcome summary of a finished execution.
func printResults(out io.Writer, rec *execution.Record, colorize bool) {
	lines := renderSectionHeader(fmt.Sprintf("Execution #%d", rec.ID), colorize)
	status := string(rec.Status)
	if rec.ErrorMessage != "" {
		status += ": " + rec.ErrorMessage
	}
	lines = append(lines,
		renderStatusLine("Status", executionKind(rec.Status), status, colorize),
		renderStatusLine("Items scanned", statusInfo, fmt.Sprintf("%d", rec.Results.ScannedVideosCount), colorize),
		renderStatusLine("Items processed", statusInfo, fmt.Sprintf("%d", rec.Results.ProcessedCount), colorize),
	)
	for _, dl := range rec.Results.DownloadedFiles {
		lines = append(lines, renderStatusLine("Downloaded", statusOK, dl.VideoFile, colorize))
	}
	for _, path := range rec.Results.ProcessedFiles {
		lines = append(lines, renderStatusLine("Processed", statusOK, path, colorize))
	}
	for _, upload := range rec.Results.Uploads {
		detail := fmt.Sprintf("%s/%s", upload.Platform, upload.Account)
		if upload.Location != "" {
			detail += " -> " + upload.Location
		}
		lines = append(lines, renderStatusLine("Uploaded", statusOK, detail, colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

// pipelineSummary renders the stage chain of a definition, or the resolve
// error when the definition cannot be resolved.
func pipelineSummary(def graph.Definition, isDiscovery graph.DiscoveryFunc) string {
	pipeline, err := graph.Resolve(def, isDiscovery, graph.Options{})
	if err != nil {
		return err.Error()
	}
	parts := []string{pipeline.Discovery.Type}
	for _, node := range pipeline.Stages {
		parts = append(parts, node.Type)
	}
	return strings.Join(parts, " -> ")
}
