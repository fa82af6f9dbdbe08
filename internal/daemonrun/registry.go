package daemonrun

import (
	"log/slog"

	"mediaflow/internal/burner"
	"mediaflow/internal/config"
	"mediaflow/internal/downloader"
	"mediaflow/internal/scanner"
	"mediaflow/internal/stage"
	"mediaflow/internal/uploader"
)

// NewRegistry registers the built-in stage handlers: scan (discovery),
// download (fetch), burn (post-process) and upload (publish).
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*stage.Registry, error) {
	registry := stage.NewRegistry()
	if err := registry.RegisterDiscovery(scanner.StageType, scanner.NewScanner(cfg, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(downloader.StageType, stage.CapabilityFetch, downloader.NewDownloader(cfg, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(burner.StageType, stage.CapabilityPostProcess, burner.NewBurner(cfg, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(uploader.StageType, stage.CapabilityPublish, uploader.NewUploader(cfg, logger)); err != nil {
		return nil, err
	}
	return registry, nil
}
