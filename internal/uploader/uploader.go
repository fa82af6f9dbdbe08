package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
)

// StageType is the node type tag handled by Uploader.
const StageType = "upload"

// Target names.
const (
	TargetDirectory = "directory"
	TargetHTTP      = "http"
	TargetSimulate  = "simulate"
)

// Job is one publish request handed to a target.
type Job struct {
	File     string
	Title    string
	Platform string
	Account  string
	Report   stage.Reporter
}

// Target publishes a file and returns where it ended up.
type Target interface {
	Publish(ctx context.Context, job Job) (string, error)
}

// Uploader publishes item videos.
type Uploader struct {
	cfg     *config.Config
	targets map[string]Target
	logger  *slog.Logger
}

// NewUploader constructs the upload stage with the built-in targets.
func NewUploader(cfg *config.Config, logger *slog.Logger) *Uploader {
	return &Uploader{
		cfg: cfg,
		targets: map[string]Target{
			TargetDirectory: &directoryTarget{root: cfg.PublishedDir()},
			TargetHTTP:      newHTTPTarget(cfg.Upload),
			TargetSimulate:  &simulateTarget{delay: time.Duration(cfg.Upload.SimulateDelayMS) * time.Millisecond},
		},
		logger: logging.NewComponentLogger(logger, "uploader"),
	}
}

// ConfigSchema describes the accepted node configuration.
func (u *Uploader) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"platform", "account"},
		"properties": map[string]any{
			"platform": map[string]any{"type": "string", "minLength": 1},
			"account":  map[string]any{"type": []any{"string", "integer"}, "minLength": 1},
			"target":   map[string]any{"type": "string", "enum": []any{TargetDirectory, TargetHTTP, TargetSimulate}},
		},
	}
}

// Execute publishes the item's newest video and records the outcome.
func (u *Uploader) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, u.logger)
	report := req.Report
	if report == nil {
		report = stage.NopReporter()
	}

	platform := req.Config.String("platform", "")
	account := req.Config.String("account", "")
	if platform == "" || account == "" {
		return services.Wrap(services.ErrConfiguration, StageType, "read config",
			"Missing platform or account configuration for upload", nil)
	}
	targetName := req.Config.String("target", u.cfg.Upload.DefaultTarget)
	target, ok := u.targets[targetName]
	if !ok {
		return services.Wrap(services.ErrConfiguration, StageType, "read config",
			fmt.Sprintf("unknown upload target %q", targetName), nil)
	}

	if req.Item == nil || req.Item.SourceVideo() == "" {
		report.Warn("No files to upload")
		return nil
	}
	file := req.Item.SourceVideo()
	title := req.Item.Item.Title
	if req.Item.Download != nil && req.Item.Download.Title != "" {
		title = req.Item.Download.Title
	}

	report.Info(fmt.Sprintf("Initiating upload for %s", filepath.Base(file)))
	logger.Info("starting upload",
		logging.String("file", file),
		logging.String("platform", platform),
		logging.String("account", account),
		logging.String("target", targetName),
	)
	location, err := target.Publish(ctx, Job{File: file, Title: title, Platform: platform, Account: account, Report: report})
	if err != nil {
		report.Warn(fmt.Sprintf("Upload of %s failed", filepath.Base(file)))
		return services.Wrap(services.ErrTransient, StageType, targetName, filepath.Base(file), err)
	}

	req.Item.Uploads = append(req.Item.Uploads, stage.UploadResult{
		Platform: platform,
		Account:  account,
		Target:   targetName,
		Location: location,
	})
	report.Info(fmt.Sprintf("Upload of %s completed successfully", filepath.Base(file)))
	logger.Info("upload complete", logging.String("location", location), logging.String("target", targetName))
	return nil
}
