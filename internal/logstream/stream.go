// Package logstream prints daemon logs, preferring the structured API and
// falling back to the log file when the daemon is not reachable.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaflow/internal/api"
	"mediaflow/internal/logs"
)

// ErrFiltersRequireAPI is returned when filters are set but only the plain
// log file is available.
var ErrFiltersRequireAPI = errors.New("log filters require API access")

const (
	defaultLines   = 200
	fileFollowWait = time.Second
)

// Filters are applied server-side by the API.
type Filters struct {
	Component   string
	ExecutionID int64
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" && f.ExecutionID == 0
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
	// LogPath is the file tailed when the API is unavailable.
	LogPath string
}

// Stream emits structured events through onEvent when the API answers and
// raw lines through onLine otherwise. It reports whether anything was emitted.
// Follow mode runs until ctx ends.
func Stream(
	ctx context.Context,
	client *logs.StreamClient,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, client, opts, onEvent)
	if err == nil || ctx.Err() != nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if strings.TrimSpace(opts.LogPath) == "" {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:       opts.Lines,
		Tail:        true,
		Component:   opts.Filters.Component,
		ExecutionID: opts.Filters.ExecutionID,
	}
	if query.Limit <= 0 {
		query.Limit = defaultLines
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = defaultLines
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, opts Options, onLine func(string)) (bool, error) {
	limit := opts.Lines
	if limit <= 0 {
		limit = defaultLines
	}
	tailOpts := logs.TailOptions{Offset: -1, Limit: limit}
	printed := false
	for {
		result, err := logs.Tail(ctx, opts.LogPath, tailOpts)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		tailOpts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: fileFollowWait}
		if ctx.Err() != nil {
			return printed, nil
		}
	}
}
