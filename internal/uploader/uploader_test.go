package uploader_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/uploader"
)

type lines struct{ info, warn []string }

func (l *lines) Info(m string) { l.info = append(l.info, m) }
func (l *lines) Warn(m string) { l.warn = append(l.warn, m) }

func itemWithVideo(t *testing.T, cfg *config.Config, name string, size int64) *stage.ItemContext {
	t.Helper()
	video := filepath.Join(cfg.VideosDir(), name)
	testsupport.WriteVideo(t, video, size)
	item := stage.NewItemContext(1, stage.Item{Title: "Clip"})
	item.Download = &stage.Download{VideoFile: video, Title: "Clip Title"}
	return item
}

func TestDirectoryTargetCopiesNewestArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	u := uploader.NewUploader(cfg, nil)
	item := itemWithVideo(t, cfg, "clip.mp4", 64)
	burned := filepath.Join(cfg.VideosDir(), "clip_burned.mp4")
	testsupport.WriteVideo(t, burned, 96)
	item.ProcessedFile = burned

	req := stage.Request{Config: stage.Config{"platform": "YouTube", "account": "Main Channel"}, Item: item, Report: &lines{}}
	if err := u.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantPath := filepath.Join(cfg.PublishedDir(), "youtube", "main_channel", "clip_burned.mp4")
	want := []stage.UploadResult{{Platform: "YouTube", Account: "Main Channel", Target: "directory", Location: wantPath}}
	if diff := cmp.Diff(want, item.Uploads); diff != "" {
		t.Fatalf("uploads mismatch (-want +got):\n%s", diff)
	}
	info, err := os.Stat(wantPath)
	if err != nil || info.Size() != 96 {
		t.Fatalf("expected published copy of burned file: %v %v", info, err)
	}

	// A second publish of the same file must not overwrite the first copy.
	if err := u.Execute(context.Background(), req); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if got := item.Uploads[1].Location; got != filepath.Join(filepath.Dir(wantPath), "clip_burned_2.mp4") {
		t.Fatalf("unexpected second location %s", got)
	}
}

func TestHTTPTargetPostsMultipart(t *testing.T) {
	type received struct {
		auth, platform, account, title, filename string
		size                                     int
	}
	var got received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.platform = r.FormValue("platform")
		got.account = r.FormValue("account")
		got.title = r.FormValue("title")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got.filename = header.Filename
		got.size = len(data)
		_ = json.NewEncoder(w).Encode(map[string]string{"location": "https://videos.example/v/123"})
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Upload.HTTPEndpoint = srv.URL
	cfg.Upload.HTTPToken = "secret"
	u := uploader.NewUploader(cfg, nil)
	item := itemWithVideo(t, cfg, "clip.mp4", 2048)

	err := u.Execute(context.Background(), stage.Request{
		Config: stage.Config{"platform": "vimeo", "account": 42.0, "target": "http"},
		Item:   item,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := received{auth: "Bearer secret", platform: "vimeo", account: "42", title: "Clip Title", filename: "clip.mp4", size: 2048}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(received{})); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
	if item.Uploads[0].Location != "https://videos.example/v/123" || item.Uploads[0].Target != "http" {
		t.Fatalf("unexpected upload result %+v", item.Uploads[0])
	}
}

func TestHTTPTargetRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Upload.HTTPEndpoint = srv.URL
	item := itemWithVideo(t, cfg, "clip.mp4", 16)
	report := &lines{}

	err := uploader.NewUploader(cfg, nil).Execute(context.Background(), stage.Request{
		Config: stage.Config{"platform": "vimeo", "account": "a", "target": "http"},
		Item:   item,
		Report: report,
	})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(item.Uploads) != 0 {
		t.Fatalf("expected no upload recorded, got %+v", item.Uploads)
	}
	if diff := cmp.Diff([]string{"Upload of clip.mp4 failed"}, report.warn); diff != "" {
		t.Fatalf("warn mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulateTargetReportsFiveSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	item := itemWithVideo(t, cfg, "clip.mp4", 8)
	report := &lines{}

	err := uploader.NewUploader(cfg, nil).Execute(context.Background(), stage.Request{
		Config: stage.Config{"platform": "tiktok", "account": "me", "target": "simulate"},
		Item:   item,
		Report: report,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{
		"Initiating upload for clip.mp4",
		"[SIMULATED] Starting upload of clip.mp4 to tiktok (me)",
		"[SIMULATED] Uploading... 20%",
		"[SIMULATED] Uploading... 40%",
		"[SIMULATED] Uploading... 60%",
		"[SIMULATED] Uploading... 80%",
		"[SIMULATED] Uploading... 100%",
		"[SIMULATED] Upload complete! Video is live on tiktok.",
		"Upload of clip.mp4 completed successfully",
	}
	if diff := cmp.Diff(want, report.info); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	if item.Uploads[0].Location != "simulated://tiktok/me/clip.mp4" {
		t.Fatalf("unexpected location %q", item.Uploads[0].Location)
	}
}

func TestSimulateTargetHonoursCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.SimulateDelayMS = 60_000
	item := itemWithVideo(t, cfg, "clip.mp4", 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := uploader.NewUploader(cfg, nil).Execute(ctx, stage.Request{
		Config: stage.Config{"platform": "tiktok", "account": "me", "target": "simulate"},
		Item:   item,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteWithoutVideoWarns(t *testing.T) {
	report := &lines{}
	err := uploader.NewUploader(testsupport.NewConfig(t), nil).Execute(context.Background(), stage.Request{
		Config: stage.Config{"platform": "p", "account": "a"},
		Item:   stage.NewItemContext(1, stage.Item{}),
		Report: report,
	})
	if err != nil || len(report.warn) != 1 || report.warn[0] != "No files to upload" {
		t.Fatalf("unexpected result: %v %v", err, report.warn)
	}
}

func TestExecuteRejectsMissingConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	u := uploader.NewUploader(cfg, nil)
	item := itemWithVideo(t, cfg, "clip.mp4", 8)
	for _, c := range []stage.Config{{"platform": "p"}, {"platform": "p", "account": "a", "target": "ftp"}} {
		if err := u.Execute(context.Background(), stage.Request{Config: c, Item: item}); !errors.Is(err, services.ErrConfiguration) {
			t.Errorf("config %v: expected configuration error, got %v", c, err)
		}
	}
}
