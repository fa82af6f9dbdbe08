package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/preflight"
	"mediaflow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_Missing(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
}

func TestCheckDirectoryAccess_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckDirectoryAccess("test", path); result.Passed {
		t.Fatal("expected failure for regular file")
	}
}

func TestCheckUploadEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	if result := preflight.CheckUploadEndpoint(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("expected reachable endpoint to pass: %s", result.Detail)
	}
	if result := preflight.CheckUploadEndpoint(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected invalid url to fail")
	}
}

func TestRunAllReportsTools(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithToolScript("yt-dlp", "exit 0\n"),
		testsupport.WithToolScript("ffmpeg", "echo 'ffmpeg version 7.0 Copyright'\necho 'built with gcc'\n"),
	)
	results := preflight.RunAll(context.Background(), cfg)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if got := results[3].Detail; !strings.HasSuffix(got, "(ffmpeg version 7.0 Copyright)") {
		t.Fatalf("expected ffmpeg version in detail, got %q", got)
	}

	cfg.Tools.FFmpegBinary = "definitely-not-ffmpeg"
	failed := preflight.Failed(preflight.RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "FFmpeg" {
		t.Fatalf("expected ffmpeg failure, got %+v", failed)
	}
}
