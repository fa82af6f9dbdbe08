package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/textutil"
)

type directoryTarget struct {
	root string
}

func (t *directoryTarget) Publish(_ context.Context, job Job) (string, error) {
	dir := filepath.Join(t.root, textutil.SanitizeToken(job.Platform), textutil.SanitizeToken(job.Account))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}
	dst := fileutil.UniquePath(dir, filepath.Base(job.File))
	written, err := fileutil.CopyVerified(job.File, dst)
	if err != nil {
		return "", fmt.Errorf("copy to %s: %w", dir, err)
	}
	job.Report.Info(fmt.Sprintf("Copied %d bytes to %s", written, dst))
	return dst, nil
}

type httpTarget struct {
	endpoint string
	token    string
	client   *http.Client
}

func newHTTPTarget(cfg config.Upload) *httpTarget {
	return &httpTarget{
		endpoint: strings.TrimSpace(cfg.HTTPEndpoint),
		token:    strings.TrimSpace(cfg.HTTPToken),
		client:   &http.Client{},
	}
}

type uploadResponse struct {
	Location string `json:"location"`
	URL      string `json:"url"`
	ID       string `json:"id"`
}

func (t *httpTarget) Publish(ctx context.Context, job Job) (string, error) {
	if t.endpoint == "" {
		return "", errors.New("upload.http_endpoint is not configured")
	}
	file, err := os.Open(job.File)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	title := job.Title
	if strings.TrimSpace(title) == "" {
		title = textutil.TitleCase(strings.TrimSuffix(filepath.Base(job.File), filepath.Ext(job.File)))
	}

	body, contentType := multipartBody(file, filepath.Base(job.File), map[string]string{
		"platform": job.Platform,
		"account":  job.Account,
		"title":    title,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Mediaflow-Go/0.1.0")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	job.Report.Info(fmt.Sprintf("Uploading %s to %s", filepath.Base(job.File), req.URL.Host))
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded uploadResponse
	if len(payload) > 0 && json.Unmarshal(payload, &decoded) == nil {
		for _, candidate := range []string{decoded.Location, decoded.URL, decoded.ID} {
			if strings.TrimSpace(candidate) != "" {
				return candidate, nil
			}
		}
	}
	if location := resp.Header.Get("Location"); location != "" {
		return location, nil
	}
	return t.endpoint, nil
}

// multipartBody streams fields followed by the file part through a pipe.
func multipartBody(file io.Reader, filename string, fields map[string]string) (io.Reader, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		for _, key := range []string{"platform", "account", "title"} {
			if err := writer.WriteField(key, fields[key]); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()
	return pr, writer.FormDataContentType()
}

type simulateTarget struct {
	delay time.Duration
}

const simulateSteps = 5

func (t *simulateTarget) Publish(ctx context.Context, job Job) (string, error) {
	name := filepath.Base(job.File)
	job.Report.Info(fmt.Sprintf("[SIMULATED] Starting upload of %s to %s (%s)", name, job.Platform, job.Account))
	for i := 1; i <= simulateSteps; i++ {
		if err := sleep(ctx, t.delay); err != nil {
			return "", err
		}
		job.Report.Info(fmt.Sprintf("[SIMULATED] Uploading... %d%%", i*100/simulateSteps))
	}
	job.Report.Info(fmt.Sprintf("[SIMULATED] Upload complete! Video is live on %s.", job.Platform))
	return fmt.Sprintf("simulated://%s/%s/%s", job.Platform, job.Account, name), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
