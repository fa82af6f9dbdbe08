package workflow

import (
	"context"

	"mediaflow/internal/execution"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/logging"
	"mediaflow/internal/stage"
	"mediaflow/internal/workerpool"
)

// StatusSummary represents lightweight engine diagnostics.
type StatusSummary struct {
	Active      []int64                  `json:"active_executions"`
	Executions  map[execution.Status]int `json:"executions"`
	Pool        workerpool.Stats         `json:"pool"`
	Observers   int                      `json:"event_observers"`
	StageHealth []stage.Health           `json:"stage_health"`
}

// Status returns the latest engine information.
func (e *Engine) Status(ctx context.Context) StatusSummary {
	stats, err := e.store.ExecutionStats(ctx)
	if err != nil {
		e.logger.Warn("failed to read execution stats", logging.Error(err))
	}
	return StatusSummary{
		Active:      e.controls.Active(),
		Executions:  stats,
		Pool:        e.pool.Stats(),
		Observers:   e.broadcaster.Observers(),
		StageHealth: e.registry.Health(ctx),
	}
}

// DeleteExecution removes a finished execution together with the video and
// subtitle files it downloaded. It returns the paths that were removed.
func (e *Engine) DeleteExecution(ctx context.Context, id int64) ([]string, error) {
	rec, err := e.store.DeleteExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	remove := func(path string) {
		removed, err := fileutil.RemoveIfExists(path)
		if err != nil {
			logging.WarnWithContext(e.logger, "failed to delete execution artifact", "artifact_cleanup",
				logging.Int64(logging.FieldExecutionID, id),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			)
			return
		}
		if !removed {
			return
		}
		deleted = append(deleted, path)
		e.logger.Info("deleted execution artifact",
			logging.Int64(logging.FieldExecutionID, id),
			logging.String("path", path),
		)
	}
	for _, dl := range rec.Results.DownloadedFiles {
		remove(dl.VideoFile)
		for _, sub := range dl.SubtitleFiles {
			remove(sub)
		}
	}
	return deleted, nil
}
