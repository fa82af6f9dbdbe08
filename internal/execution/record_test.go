package execution_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/execution"
	"mediaflow/internal/stage"
)

func TestResultsMergeAppends(t *testing.T) {
	var results execution.Results
	first := stage.NewItemContext(1, stage.Item{ID: "a"})
	first.Download = &stage.Download{VideoFile: "a.mp4", SubtitleFiles: []string{"a.en.srt"}, Title: "A"}
	first.ProcessedFile = "a_burned.mp4"
	first.Uploads = []stage.UploadResult{{Platform: "youtube", Account: "main", Target: "simulate"}}

	second := stage.NewItemContext(2, stage.Item{ID: "b"})
	second.Download = &stage.Download{VideoFile: "b.mp4", Title: "B"}
	second.Subtitles = []string{"b.srt"}

	results.Merge(first)
	results.Merge(second)

	if results.ProcessedCount != 2 || results.VideosCount != 2 {
		t.Fatalf("unexpected counts: %+v", results)
	}
	if diff := cmp.Diff([]string{"a_burned.mp4"}, results.ProcessedFiles); diff != "" {
		t.Fatalf("processed files mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b.srt"}, results.Subtitles); diff != "" {
		t.Fatalf("subtitles mismatch:\n%s", diff)
	}

	first.Download.SubtitleFiles[0] = "mutated"
	if results.DownloadedFiles[0].SubtitleFiles[0] != "a.en.srt" {
		t.Fatal("merge must copy subtitle slices")
	}
}

func TestResultsCloneIsIndependent(t *testing.T) {
	results := execution.Results{
		ScannedVideos: []execution.ItemProgress{execution.NewItemProgress("a", "A", "", []string{"download"})},
	}
	clone := results.Clone()
	clone.ScannedVideos[0].Stages["download"] = execution.StageCompleted
	clone.ScannedVideos[0].Status = execution.ItemCompleted
	if results.ScannedVideos[0].Stages["download"] != execution.StagePending || results.ScannedVideos[0].Status != execution.ItemPending {
		t.Fatalf("clone shares state: %+v", results.ScannedVideos[0])
	}
}

func TestStatusHelpers(t *testing.T) {
	if execution.StatusRunning.Terminal() || execution.StatusPaused.Terminal() {
		t.Fatal("running and paused are not terminal")
	}
	if !execution.StatusCancelled.Terminal() {
		t.Fatal("cancelled is terminal")
	}
	if _, err := execution.ParseStatus("bogus"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormatLogEntry(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := execution.FormatLogEntry(at, "Workflow execution started")
	if !strings.HasPrefix(got, "[2026-01-02T03:04:05Z] ") || !strings.HasSuffix(got, "started") {
		t.Fatalf("unexpected entry %q", got)
	}
}

func TestControls(t *testing.T) {
	controls := execution.NewControls()
	ctl := controls.Register(5)
	if controls.Cancel(6) {
		t.Fatal("unknown id should not be cancellable")
	}
	if !controls.Cancel(5) || !ctl.Cancelled() {
		t.Fatal("expected control to be cancelled")
	}
	if diff := cmp.Diff([]int64{5}, controls.Active()); diff != "" {
		t.Fatalf("active mismatch:\n%s", diff)
	}
	controls.Remove(5)
	if len(controls.Active()) != 0 {
		t.Fatal("expected no active executions")
	}
}
