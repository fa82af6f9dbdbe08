package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/media/ytdlp"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
	"mediaflow/internal/testsupport"
)

// downloadScript mimics yt-dlp: it resolves the -o template and writes the
// video, an English subtitle and a thumbnail next to it.
const downloadScript = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
case " $* " in
  *" --skip-download "*) echo '{"title":"Probed: Title?"}'; exit 0 ;;
  *" --version "*) echo 2024.01.01; exit 0 ;;
esac
base=$(printf '%s' "$out" | sed 's/\.%(ext)s$//')
printf 'video-bytes' > "$base.mp4"
echo sub > "$base.en.srt"
echo thumb > "$base.jpg"
echo '{"title":"My Clip","duration":30}'
`

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newScripted(t *testing.T) *Downloader {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithToolScript("yt-dlp", downloadScript))
	d := NewDownloader(cfg, nil)
	d.now = func() time.Time { return fixedNow }
	return d
}

type lines []string

func (l *lines) Info(m string) { *l = append(*l, m) }
func (l *lines) Warn(m string) { *l = append(*l, "WARN "+m) }

func TestExecuteDownloadsWithSubtitles(t *testing.T) {
	d := newScripted(t)
	item := stage.NewItemContext(1, stage.Item{ID: "x", Title: "Great: Video?", URL: "https://example.com/x"})
	var report lines

	if err := d.Execute(context.Background(), stage.Request{NodeID: "download", Config: stage.Config{}, Item: item, Report: &report}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stem := filepath.Join(d.cfg.VideosDir(), "Great Video_20240506_070809")
	want := &stage.Download{
		VideoFile:     stem + ".mp4",
		SubtitleFiles: []string{stem + ".en.srt"},
		ThumbnailFile: stem + ".jpg",
		Title:         "My Clip",
		URL:           "https://example.com/x",
		FileSize:      int64(len("video-bytes")),
	}
	if diff := cmp.Diff(want, item.Download); diff != "" {
		t.Fatalf("download mismatch (-want +got):\n%s", diff)
	}
	if item.Item.Duration != 30 {
		t.Fatalf("expected duration backfilled, got %v", item.Item.Duration)
	}
	wantReport := lines{
		"Downloading: Great: Video?",
		"Downloaded: " + stem + ".mp4",
		"Subtitles: 1 file(s)",
	}
	if diff := cmp.Diff(wantReport, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteWithoutSubtitles(t *testing.T) {
	d := newScripted(t)
	item := stage.NewItemContext(1, stage.Item{Title: "Clip", URL: "https://example.com/y"})
	err := d.Execute(context.Background(), stage.Request{Config: stage.Config{"download_subtitles": false}, Item: item})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(item.Download.SubtitleFiles) != 0 {
		t.Fatalf("expected subtitles to be ignored, got %v", item.Download.SubtitleFiles)
	}
}

func TestConcurrentExecutionsOfSameTitleKeepSeparateFiles(t *testing.T) {
	d := newScripted(t)
	var files []string
	for _, execID := range []int64{11, 12} {
		item := stage.NewItemContext(1, stage.Item{ID: "x", Title: "Same Title", URL: "https://example.com/x"})
		req := stage.Request{ExecutionID: execID, NodeID: "download", Config: stage.Config{}, Item: item}
		if err := d.Execute(context.Background(), req); err != nil {
			t.Fatalf("Execute for execution %d: %v", execID, err)
		}
		files = append(files, item.Download.VideoFile)
	}

	want := []string{
		filepath.Join(d.cfg.VideosDir(), "Same Title_20240506_070809_11-1.mp4"),
		filepath.Join(d.cfg.VideosDir(), "Same Title_20240506_070809_12-1.mp4"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("video files mismatch (-want +got):\n%s", diff)
	}
	for _, path := range want {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}
}

func TestExecuteProbesMissingTitle(t *testing.T) {
	d := newScripted(t)
	item := stage.NewItemContext(1, stage.Item{URL: "https://example.com/z"})
	if err := d.Execute(context.Background(), stage.Request{Config: stage.Config{}, Item: item}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := filepath.Base(item.Download.VideoFile); got != "Probed Title_20240506_070809.mp4" {
		t.Fatalf("unexpected video name %q", got)
	}
}

type failingFetcher struct{}

func (failingFetcher) Probe(context.Context, string) (ytdlp.Entry, error) {
	return ytdlp.Entry{}, errors.New("probe failed")
}

func (failingFetcher) Download(context.Context, ytdlp.DownloadOptions) (ytdlp.Entry, error) {
	return ytdlp.Entry{}, errors.New("HTTP Error 403")
}

func (failingFetcher) Version(context.Context) (string, error) {
	return "", errors.New("not installed")
}

func TestExecuteFailureLeavesItemUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := NewDownloaderWithFetcher(cfg, failingFetcher{}, nil)
	item := stage.NewItemContext(1, stage.Item{Title: "Clip", URL: "https://example.com/x"})

	err := d.Execute(context.Background(), stage.Request{Config: stage.Config{}, Item: item})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "HTTP Error 403") {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Download != nil {
		t.Fatalf("expected no download recorded, got %+v", item.Download)
	}
	if health := d.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy downloader")
	}
}

func TestExecuteRequiresURL(t *testing.T) {
	d := NewDownloaderWithFetcher(testsupport.NewConfig(t), failingFetcher{}, nil)
	err := d.Execute(context.Background(), stage.Request{Item: stage.NewItemContext(1, stage.Item{Title: "x"})})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLocateVideoFallsBackToOtherContainers(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "clip_20240101_000000")
	for _, name := range []string{stem + ".en.vtt", stem + ".webp", stem + ".mkv"} {
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := locateVideo(stem)
	if err != nil {
		t.Fatalf("locateVideo: %v", err)
	}
	if got != stem+".mkv" {
		t.Fatalf("expected mkv fallback, got %s", got)
	}

	if _, err := locateVideo(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error when nothing was produced")
	}
}
