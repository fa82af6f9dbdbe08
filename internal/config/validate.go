package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StorageDir == "" {
		return errors.New("paths.storage_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount < 1 {
		return errors.New("workflow.worker_count must be at least 1")
	}
	if c.Workflow.EventBuffer < 1 {
		return errors.New("workflow.event_buffer must be at least 1")
	}
	if c.Workflow.ShutdownTimeoutSecond < 0 {
		return errors.New("workflow.shutdown_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.DefaultTarget {
	case "directory", "http", "simulate":
	default:
		return fmt.Errorf("upload.default_target must be one of directory, http, simulate (got %q)", c.Upload.DefaultTarget)
	}
	if c.Upload.DefaultTarget == "http" && c.Upload.HTTPEndpoint == "" {
		return errors.New("upload.http_endpoint is required when upload.default_target is http")
	}
	if c.Upload.HTTPEndpoint != "" {
		parsed, err := url.Parse(c.Upload.HTTPEndpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("upload.http_endpoint must be an absolute URL (got %q)", c.Upload.HTTPEndpoint)
		}
	}
	if c.Upload.SimulateDelayMS < 0 {
		return errors.New("upload.simulate_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
