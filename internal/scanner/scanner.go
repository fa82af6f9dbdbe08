package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/media/ytdlp"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
)

// StageType is the node type tag handled by Scanner.
const StageType = "scan"

// Lister lists channel entries. *ytdlp.Client satisfies it.
type Lister interface {
	ListChannel(ctx context.Context, url string, limit int) (ytdlp.Playlist, error)
	Version(ctx context.Context) (string, error)
}

// Scanner discovers the items of an execution.
type Scanner struct {
	lister Lister
	logger *slog.Logger
}

// NewScanner constructs the scan stage using the configured yt-dlp binary.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	return NewScannerWithLister(ytdlp.New(cfg.Tools.YtDlpBinary, cfg.Tools.UserAgent), logger)
}

// NewScannerWithLister allows injecting the listing backend (used in tests).
func NewScannerWithLister(lister Lister, logger *slog.Logger) *Scanner {
	return &Scanner{lister: lister, logger: logging.NewComponentLogger(logger, "scanner")}
}

// ConfigSchema describes the accepted node configuration.
func (s *Scanner) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
			"video_limit": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string", "enum": []any{"all"}},
					map[string]any{"type": "string", "pattern": "^[1-9][0-9]*$"},
					map[string]any{"type": "integer", "minimum": 1},
				},
			},
		},
	}
}

// Discover lists the configured URL and returns one item per usable entry.
func (s *Scanner) Discover(ctx context.Context, req stage.Request) ([]stage.Item, error) {
	logger := logging.WithContext(ctx, s.logger)
	url := req.Config.String("url", "")
	if url == "" {
		return nil, services.Wrap(services.ErrConfiguration, StageType, "read config", "url is required", nil)
	}
	limit := videoLimit(req.Config)
	listURL := VideosURL(url)

	report := req.Report
	if report == nil {
		report = stage.NopReporter()
	}
	if limit > 0 {
		report.Info(fmt.Sprintf("Scanning channel: %s (Limit: %d videos)", url, limit))
	} else {
		report.Info(fmt.Sprintf("Scanning channel: %s (Limit: all videos)", url))
	}
	logger.Info("scanning channel",
		logging.String("url", url),
		logging.String("list_url", listURL),
		logging.Int("limit", limit),
	)

	playlist, err := s.lister.ListChannel(ctx, listURL, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageType, "list channel", url, err)
	}

	items := make([]stage.Item, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry == nil {
			continue
		}
		item, ok := itemFromEntry(url, *entry)
		if !ok {
			logger.Debug("skipping entry without id or url", logging.String("title", entry.Title))
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}

	if len(items) == 0 {
		report.Info("No videos found")
	} else {
		report.Info(fmt.Sprintf("Found %d videos", len(items)))
	}
	logger.Info("channel scanned",
		logging.String("channel", playlist.Name()),
		logging.Int("videos", len(items)),
	)
	return items, nil
}

// HealthCheck verifies yt-dlp can be executed.
func (s *Scanner) HealthCheck(ctx context.Context) stage.Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.lister.Version(ctx); err != nil {
		return stage.Unhealthy(StageType, err.Error())
	}
	return stage.Healthy(StageType)
}

// videoLimit returns the configured limit, 0 meaning all.
func videoLimit(cfg stage.Config) int {
	if strings.EqualFold(cfg.String("video_limit", "all"), "all") {
		return 0
	}
	if n, ok := cfg.Int("video_limit"); ok && n > 0 {
		return n
	}
	return 0
}

// VideosURL rewrites YouTube channel URLs to their videos tab.
func VideosURL(url string) string {
	if !strings.Contains(url, "youtube.com/@") &&
		!strings.Contains(url, "youtube.com/c/") &&
		!strings.Contains(url, "youtube.com/channel/") {
		return url
	}
	trimmed := strings.TrimRight(url, "/")
	if strings.HasSuffix(trimmed, "/videos") {
		return trimmed
	}
	return trimmed + "/videos"
}

func itemFromEntry(channelURL string, entry ytdlp.Entry) (stage.Item, bool) {
	url := entry.WebpageURL
	if url == "" {
		url = entry.URL
	}
	if url == "" && entry.ID != "" {
		url = entryURL(channelURL, entry)
	}
	if url == "" {
		return stage.Item{}, false
	}
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "Unknown Title"
	}
	id := entry.ID
	if id == "" {
		id = url
	}
	return stage.Item{
		ID:           id,
		Title:        title,
		URL:          url,
		ThumbnailURL: entry.BestThumbnail(),
		Duration:     entry.Duration,
		UploadDate:   formatUploadDate(entry.UploadDate),
		ViewCount:    entry.ViewCount,
	}, true
}

// entryURL builds a watch URL from an entry id for platforms whose URLs are
// predictable. Other platforms fall back to the bare id.
func entryURL(channelURL string, entry ytdlp.Entry) string {
	switch {
	case strings.Contains(channelURL, "youtube.com"), strings.Contains(channelURL, "youtu.be"):
		return "https://www.youtube.com/watch?v=" + entry.ID
	case strings.Contains(channelURL, "tiktok.com"):
		uploader := strings.TrimSpace(entry.Uploader)
		if uploader == "" {
			uploader = "user"
		}
		if !strings.HasPrefix(uploader, "@") {
			uploader = "@" + uploader
		}
		return fmt.Sprintf("https://www.tiktok.com/%s/video/%s", uploader, entry.ID)
	case strings.Contains(channelURL, "douyin.com"):
		return "https://www.douyin.com/video/" + entry.ID
	default:
		return entry.ID
	}
}

// formatUploadDate renders yt-dlp's YYYYMMDD as "Jan 02, 2006". Unparseable
// values are returned unchanged.
func formatUploadDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := time.Parse("20060102", raw)
	if err != nil {
		return raw
	}
	return parsed.Format("Jan 02, 2006")
}
