// Package execution models the durable state of one workflow run: its
// status, timestamped log, aggregated results and per-item progress.
package execution

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"mediaflow/internal/stage"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

var (
	// ErrAlreadyFinished is returned when cancelling an execution that has ended.
	ErrAlreadyFinished = errors.New("execution already finished")
	// ErrRunning is returned when deleting an execution that is still running.
	ErrRunning = errors.New("execution is running")
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus validates a stored status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusPaused:
		return s, nil
	default:
		return "", fmt.Errorf("unknown execution status %q", raw)
	}
}

// Record is the externally visible state of an execution.
type Record struct {
	ID           int64      `json:"id"`
	WorkflowID   int64      `json:"workflow_id"`
	Status       Status     `json:"status"`
	Log          []string   `json:"execution_log"`
	Results      Results    `json:"execution_results"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Results aggregates what an execution produced.
type Results struct {
	VideosCount        int                  `json:"videos_count"`
	DownloadedFiles    []stage.Download     `json:"downloaded_files"`
	Subtitles          []string             `json:"subtitles"`
	ProcessedFiles     []string             `json:"processed_files"`
	Uploads            []stage.UploadResult `json:"uploads"`
	ScannedVideosCount int                  `json:"scanned_videos_count"`
	ScannedVideos      []ItemProgress       `json:"scanned_videos"`
	ProcessedCount     int                  `json:"processed_count"`
}

// Merge appends the artifacts of a successfully processed item.
func (r *Results) Merge(item *stage.ItemContext) {
	if item == nil {
		return
	}
	if item.Download != nil {
		dl := *item.Download
		dl.SubtitleFiles = slices.Clone(item.Download.SubtitleFiles)
		r.DownloadedFiles = append(r.DownloadedFiles, dl)
	}
	r.Subtitles = append(r.Subtitles, item.Subtitles...)
	if item.ProcessedFile != "" {
		r.ProcessedFiles = append(r.ProcessedFiles, item.ProcessedFile)
	}
	r.Uploads = append(r.Uploads, item.Uploads...)
	r.VideosCount = len(r.DownloadedFiles)
	r.ProcessedCount++
}

// Clone returns a deep copy safe to hand to persistence while the
// coordinator keeps mutating the original.
func (r Results) Clone() Results {
	out := r
	out.DownloadedFiles = make([]stage.Download, len(r.DownloadedFiles))
	for i, dl := range r.DownloadedFiles {
		dl.SubtitleFiles = slices.Clone(dl.SubtitleFiles)
		out.DownloadedFiles[i] = dl
	}
	out.Subtitles = slices.Clone(r.Subtitles)
	out.ProcessedFiles = slices.Clone(r.ProcessedFiles)
	out.Uploads = slices.Clone(r.Uploads)
	out.ScannedVideos = make([]ItemProgress, len(r.ScannedVideos))
	for i, p := range r.ScannedVideos {
		out.ScannedVideos[i] = p.Clone()
	}
	return out
}

// Normalize replaces nil slices with empty ones so snapshots encode as [].
func (r *Results) Normalize() {
	if r.DownloadedFiles == nil {
		r.DownloadedFiles = []stage.Download{}
	}
	if r.Subtitles == nil {
		r.Subtitles = []string{}
	}
	if r.ProcessedFiles == nil {
		r.ProcessedFiles = []string{}
	}
	if r.Uploads == nil {
		r.Uploads = []stage.UploadResult{}
	}
	if r.ScannedVideos == nil {
		r.ScannedVideos = []ItemProgress{}
	}
}

// FormatLogEntry renders an execution-log line.
func FormatLogEntry(at time.Time, message string) string {
	return fmt.Sprintf("[%s] %s", at.Format(time.RFC3339Nano), message)
}
