package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeTools()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if value, ok := os.LookupEnv("MEDIAFLOW_STORAGE_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StorageDir = strings.TrimSpace(value)
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WorkerCount == 0 {
		c.Workflow.WorkerCount = defaultWorkerCount
	}
	if c.Workflow.EventBuffer == 0 {
		c.Workflow.EventBuffer = defaultEventBuffer
	}
	if c.Workflow.ShutdownTimeoutSecond == 0 {
		c.Workflow.ShutdownTimeoutSecond = defaultShutdownTimeoutSeconds
	}
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlpBinary = strings.TrimSpace(c.Tools.YtDlpBinary)
	if c.Tools.YtDlpBinary == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.UserAgent = strings.TrimSpace(c.Tools.UserAgent)
	if c.Tools.UserAgent == "" {
		c.Tools.UserAgent = defaultUserAgent
	}
	c.Tools.DefaultQuality = strings.ToLower(strings.TrimSpace(c.Tools.DefaultQuality))
	if c.Tools.DefaultQuality == "" {
		c.Tools.DefaultQuality = defaultQuality
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.DefaultTarget = strings.ToLower(strings.TrimSpace(c.Upload.DefaultTarget))
	if c.Upload.DefaultTarget == "" {
		c.Upload.DefaultTarget = defaultUploadTarget
	}
	c.Upload.HTTPEndpoint = strings.TrimSpace(c.Upload.HTTPEndpoint)
	c.Upload.HTTPToken = strings.TrimSpace(c.Upload.HTTPToken)
	if c.Upload.HTTPToken == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_UPLOAD_TOKEN"); ok {
			c.Upload.HTTPToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeEvents() {
	brokers := make([]string, 0, len(c.Events.KafkaBrokers))
	for _, broker := range c.Events.KafkaBrokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Events.KafkaBrokers = brokers
	c.Events.KafkaTopic = strings.TrimSpace(c.Events.KafkaTopic)
	if c.Events.KafkaTopic == "" {
		c.Events.KafkaTopic = defaultKafkaTopic
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.StreamCapacity <= 0 {
		c.Logging.StreamCapacity = defaultStreamCapacity
	}
}
