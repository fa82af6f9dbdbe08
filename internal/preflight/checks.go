package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediaflow/internal/config"
	"mediaflow/internal/deps"
	"mediaflow/internal/media/ffmpeg"
	"mediaflow/internal/media/ytdlp"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckUploadEndpoint verifies the HTTP upload target answers at all. Any
// HTTP response counts as reachable; only transport failures fail the check.
func CheckUploadEndpoint(ctx context.Context, endpoint string) Result {
	const name = "Upload endpoint"

	endpoint = strings.TrimSpace(endpoint)
	parsed, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: "missing or invalid url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (HTTP %d)", parsed.Host, resp.StatusCode)}
}

// CheckSystemDeps evaluates the external tools used by the stage handlers.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlpBinary,
			Description: "Required for scanning and downloading",
			Probe: func(ctx context.Context, binary string) (string, error) {
				return ytdlp.New(binary, cfg.Tools.UserAgent).Version(ctx)
			},
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpegBinary,
			Description: "Required for burning subtitles and watermarks",
			Probe:       ffmpeg.Version,
		},
	})
}
