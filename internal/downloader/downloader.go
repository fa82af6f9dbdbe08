package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/logging"
	"mediaflow/internal/media/ytdlp"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
	"mediaflow/internal/textutil"
)

// StageType is the node type tag handled by Downloader.
const StageType = "download"

var (
	subtitleExts  = []string{".srt", ".vtt"}
	thumbnailExts = []string{".jpg", ".webp", ".png"}
)

// Fetcher is the yt-dlp surface the downloader needs.
type Fetcher interface {
	Probe(ctx context.Context, url string) (ytdlp.Entry, error)
	Download(ctx context.Context, opts ytdlp.DownloadOptions) (ytdlp.Entry, error)
	Version(ctx context.Context) (string, error)
}

// Downloader fetches item media.
type Downloader struct {
	cfg     *config.Config
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewDownloader constructs the download stage using the configured yt-dlp binary.
func NewDownloader(cfg *config.Config, logger *slog.Logger) *Downloader {
	return NewDownloaderWithFetcher(cfg, ytdlp.New(cfg.Tools.YtDlpBinary, cfg.Tools.UserAgent), logger)
}

// NewDownloaderWithFetcher allows injecting the fetch backend (used in tests).
func NewDownloaderWithFetcher(cfg *config.Config, fetcher Fetcher, logger *slog.Logger) *Downloader {
	return &Downloader{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "downloader"),
		now:     time.Now,
	}
}

// ConfigSchema describes the accepted node configuration.
func (d *Downloader) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"download_subtitles": map[string]any{"type": []any{"boolean", "string"}},
			"subtitle_language":  map[string]any{"type": "string", "pattern": "^[A-Za-z0-9_-]*$"},
			"quality":            map[string]any{"type": "string"},
		},
	}
}

// Execute downloads req.Item and records the produced files on it.
func (d *Downloader) Execute(ctx context.Context, req stage.Request) error {
	if req.Item == nil || strings.TrimSpace(req.Item.Item.URL) == "" {
		return services.Wrap(services.ErrValidation, StageType, "validate inputs", "item has no url", nil)
	}
	logger := logging.WithContext(ctx, d.logger)
	report := req.Report
	if report == nil {
		report = stage.NopReporter()
	}

	withSubs := req.Config.Bool("download_subtitles", true)
	lang := req.Config.String("subtitle_language", "en")
	quality := req.Config.String("quality", d.cfg.Tools.DefaultQuality)
	url := req.Item.Item.URL

	title := strings.TrimSpace(req.Item.Item.Title)
	if title == "" {
		entry, err := d.fetcher.Probe(ctx, url)
		if err != nil {
			logger.Warn("could not extract title before download",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldEventType, "download_probe_failed"),
				logging.String(logging.FieldErrorHint, "the file is named \"video\" instead"),
				logging.String(logging.FieldImpact, "cosmetic"),
			)
		} else {
			title = strings.TrimSpace(entry.Title)
		}
	}
	report.Info(fmt.Sprintf("Downloading: %s", textutil.Ternary(title != "", title, url)))

	base := textutil.SanitizeFileName(title)
	if base == "" {
		base = "video"
	}
	stem := filepath.Join(d.cfg.VideosDir(), outputName(base, d.now(), req))
	if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, StageType, "prepare videos dir", "", err)
	}

	logger.Info("starting download",
		logging.String("url", url),
		logging.String("output", stem),
		logging.Bool("subtitles", withSubs),
		logging.String("subtitle_language", lang),
		logging.String("quality", quality),
	)
	entry, err := d.fetcher.Download(ctx, ytdlp.DownloadOptions{
		URL:            url,
		OutputTemplate: stem + ".%(ext)s",
		Format:         quality,
		Subtitles:      withSubs,
		SubtitleLang:   lang,
		Thumbnail:      true,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageType, "yt-dlp", url, err)
	}

	videoFile, err := locateVideo(stem)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageType, "locate output", url, err)
	}
	videoStem := strings.TrimSuffix(videoFile, filepath.Ext(videoFile))

	result := &stage.Download{
		VideoFile:     videoFile,
		SubtitleFiles: []string{},
		ThumbnailFile: firstExisting(videoStem, thumbnailExts),
		Title:         textutil.Ternary(strings.TrimSpace(entry.Title) != "", strings.TrimSpace(entry.Title), title),
		URL:           url,
		FileSize:      fileutil.Size(videoFile),
	}
	if withSubs {
		for _, ext := range subtitleExts {
			if candidate := fmt.Sprintf("%s.%s%s", videoStem, lang, ext); fileutil.Exists(candidate) {
				result.SubtitleFiles = append(result.SubtitleFiles, candidate)
			}
		}
	}
	req.Item.Download = result
	if req.Item.Item.Duration == 0 {
		req.Item.Item.Duration = entry.Duration
	}

	report.Info(fmt.Sprintf("Downloaded: %s", videoFile))
	if withSubs && len(result.SubtitleFiles) > 0 {
		report.Info(fmt.Sprintf("Subtitles: %d file(s)", len(result.SubtitleFiles)))
	}
	logger.Info("download complete",
		logging.String("video_file", videoFile),
		logging.Int("subtitle_files", len(result.SubtitleFiles)),
		logging.Int64("file_size", result.FileSize),
	)
	return nil
}

// outputName is "<title>_<timestamp>", suffixed with "_<execution>-<item>"
// inside an execution so concurrent runs of the same title never share files.
func outputName(base string, at time.Time, req stage.Request) string {
	name := fmt.Sprintf("%s_%s", base, at.Format("20060102_150405"))
	if req.ExecutionID > 0 {
		name = fmt.Sprintf("%s_%d-%d", name, req.ExecutionID, req.Item.Index)
	}
	return name
}

// HealthCheck verifies yt-dlp can be executed.
func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := d.fetcher.Version(ctx); err != nil {
		return stage.Unhealthy(StageType, err.Error())
	}
	return stage.Healthy(StageType)
}

// locateVideo finds the file yt-dlp produced for stem, preferring the
// converted mp4 and ignoring sidecar files.
func locateVideo(stem string) (string, error) {
	if mp4 := stem + ".mp4"; fileutil.Exists(mp4) {
		return mp4, nil
	}
	matches, err := filepath.Glob(globEscape(stem) + ".*")
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		rest := strings.TrimPrefix(match, stem+".")
		if strings.Contains(rest, ".") || isSidecar(filepath.Ext(match)) {
			continue
		}
		if fileutil.Exists(match) {
			return match, nil
		}
	}
	return "", fmt.Errorf("no video file produced for %s", filepath.Base(stem))
}

func isSidecar(ext string) bool {
	ext = strings.ToLower(ext)
	for _, candidate := range append(append([]string{".part", ".ytdl", ".json"}, subtitleExts...), thumbnailExts...) {
		if ext == candidate {
			return true
		}
	}
	return false
}

func firstExisting(stem string, exts []string) string {
	for _, ext := range exts {
		if candidate := stem + ext; fileutil.Exists(candidate) {
			return candidate
		}
	}
	return ""
}

var globEscaper = strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)

func globEscape(path string) string {
	return globEscaper.Replace(path)
}
