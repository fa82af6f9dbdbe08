// Package burner implements the "burn" post-process stage, which renders a
// subtitle track and an optional text watermark into the downloaded video
// with ffmpeg.
package burner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/media/ffmpeg"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
)

// StageType is the node type tag handled by Burner.
const StageType = "burn"

// Renderer runs the ffmpeg burn. ffmpegRenderer is the production implementation.
type Renderer interface {
	Burn(ctx context.Context, input, output string, overlay ffmpeg.Overlay) error
	Version(ctx context.Context) (string, error)
}

type ffmpegRenderer struct{ binary string }

func (r ffmpegRenderer) Burn(ctx context.Context, input, output string, overlay ffmpeg.Overlay) error {
	return ffmpeg.Burn(ctx, r.binary, input, output, overlay)
}

func (r ffmpegRenderer) Version(ctx context.Context) (string, error) {
	return ffmpeg.Version(ctx, r.binary)
}

// Burner renders overlays into downloaded videos.
type Burner struct {
	renderer Renderer
	logger   *slog.Logger
}

// NewBurner constructs the burn stage using the configured ffmpeg binary.
func NewBurner(cfg *config.Config, logger *slog.Logger) *Burner {
	return NewBurnerWithRenderer(ffmpegRenderer{binary: cfg.Tools.FFmpegBinary}, logger)
}

// NewBurnerWithRenderer allows injecting the renderer (used in tests).
func NewBurnerWithRenderer(renderer Renderer, logger *slog.Logger) *Burner {
	return &Burner{renderer: renderer, logger: logging.NewComponentLogger(logger, "burner")}
}

// ConfigSchema describes the accepted node configuration.
func (b *Burner) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"add_watermark":  map[string]any{"type": []any{"boolean", "string"}},
			"watermark_text": map[string]any{"type": "string", "maxLength": 200},
		},
	}
}

// Execute burns the selected subtitle and watermark into the item's video.
func (b *Burner) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, b.logger)
	report := req.Report
	if report == nil {
		report = stage.NopReporter()
	}
	if req.Item == nil || req.Item.Download == nil || req.Item.Download.VideoFile == "" {
		report.Warn("No downloaded video to process")
		return nil
	}

	video := req.Item.Download.VideoFile
	overlay := ffmpeg.Overlay{SubtitleFile: selectSubtitle(req.Item)}
	if req.Config.Bool("add_watermark", false) {
		overlay.Watermark = req.Config.String("watermark_text", "")
	}
	if overlay.Empty() {
		report.Warn(fmt.Sprintf("Skipping %s - no subtitles or watermark configured", filepath.Base(video)))
		return nil
	}

	var actions []string
	if overlay.SubtitleFile != "" {
		actions = append(actions, "subtitles")
	}
	if overlay.Watermark != "" {
		actions = append(actions, fmt.Sprintf("watermark '%s'", overlay.Watermark))
	}
	report.Info(fmt.Sprintf("Processing %s with %s", filepath.Base(video), strings.Join(actions, " and ")))

	output := BurnedPath(video)
	start := time.Now()
	logger.Info("burning overlay",
		logging.String("input", video),
		logging.String("output", output),
		logging.String("subtitle", overlay.SubtitleFile),
		logging.Bool("watermark", overlay.Watermark != ""),
	)
	if err := b.renderer.Burn(ctx, video, output, overlay); err != nil {
		return services.Wrap(services.ErrExternalTool, StageType, "ffmpeg", filepath.Base(video), err)
	}
	req.Item.ProcessedFile = output
	report.Info(fmt.Sprintf("Processed video saved to %s", filepath.Base(output)))
	logger.Info("overlay burned",
		logging.String("output", output),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// HealthCheck verifies ffmpeg can be executed.
func (b *Burner) HealthCheck(ctx context.Context) stage.Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := b.renderer.Version(ctx); err != nil {
		return stage.Unhealthy(StageType, err.Error())
	}
	return stage.Healthy(StageType)
}

// BurnedPath returns the output path for a burned copy of video.
func BurnedPath(video string) string {
	if strings.HasSuffix(video, ".mp4") {
		return strings.TrimSuffix(video, ".mp4") + "_burned.mp4"
	}
	return strings.TrimSuffix(video, filepath.Ext(video)) + "_burned.mp4"
}

// selectSubtitle prefers a generated subtitle belonging to the video, then
// the first subtitle fetched with it.
func selectSubtitle(item *stage.ItemContext) string {
	stem := strings.TrimSuffix(item.Download.VideoFile, filepath.Ext(item.Download.VideoFile))
	base := filepath.Base(stem)
	for _, sub := range item.Subtitles {
		if strings.Contains(sub, base) {
			return sub
		}
	}
	if len(item.Download.SubtitleFiles) > 0 {
		return item.Download.SubtitleFiles[0]
	}
	return ""
}
