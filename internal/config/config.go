package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Workflow contains execution engine settings.
type Workflow struct {
	WorkerCount           int  `toml:"worker_count"`
	EventBuffer           int  `toml:"event_buffer"`
	StrictGraph           bool `toml:"strict_graph"`
	FailOnDiscoveryError  bool `toml:"fail_on_discovery_error"`
	ShutdownTimeoutSecond int  `toml:"shutdown_timeout"`
}

// Tools contains external binary configuration used by the stage handlers.
type Tools struct {
	YtDlpBinary    string `toml:"ytdlp_binary"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	UserAgent      string `toml:"user_agent"`
	DefaultQuality string `toml:"default_quality"`
}

// Upload contains publish target configuration.
type Upload struct {
	DefaultTarget   string `toml:"default_target"`
	HTTPEndpoint    string `toml:"http_endpoint"`
	HTTPToken       string `toml:"http_token"`
	SimulateDelayMS int    `toml:"simulate_delay_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic         string `toml:"ntfy_topic"`
	RequestTimeout    int    `toml:"request_timeout"`
	WorkflowCompleted bool   `toml:"workflow_completed"`
	WorkflowFailed    bool   `toml:"workflow_failed"`
	ItemFailed        bool   `toml:"item_failed"`
}

// Events contains settings for exporting broadcast events.
type Events struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string `toml:"format"`
	Level          string `toml:"level"`
	StreamCapacity int    `toml:"stream_capacity"`
}

// Scheduler toggles cron-driven workflow triggering.
type Scheduler struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for mediaflow.
//
// Configuration sections by subsystem:
//   - Paths: storage and log directories, API bind address and token
//   - Workflow: worker pool size, event buffering, graph strictness
//   - Tools: yt-dlp / ffmpeg binaries used by the stage handlers
//   - Upload: publish targets for the upload stage
//   - Notifications: ntfy push notification settings
//   - Events: optional Kafka export of execution events
//   - Logging: log format, level and in-memory stream size
//   - Scheduler: cron triggering of scheduled workflows
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Tools         Tools         `toml:"tools"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
	Scheduler     Scheduler     `toml:"scheduler"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StorageDir, c.Paths.LogDir}
	dirs = append(dirs, c.VideosDir(), c.SubtitlesDir(), c.ThumbnailsDir(), c.PublishedDir())
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// VideosDir is where the download stage writes fetched media.
func (c *Config) VideosDir() string {
	return filepath.Join(c.Paths.StorageDir, "videos")
}

// SubtitlesDir is where generated subtitle files are written.
func (c *Config) SubtitlesDir() string {
	return filepath.Join(c.Paths.StorageDir, "subtitles")
}

// ThumbnailsDir is where downloaded thumbnails are kept.
func (c *Config) ThumbnailsDir() string {
	return filepath.Join(c.Paths.StorageDir, "thumbnails")
}

// PublishedDir is the root of the directory upload target.
func (c *Config) PublishedDir() string {
	return filepath.Join(c.Paths.StorageDir, "published")
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "mediaflow.db")
}

// KafkaEnabled reports whether broadcast events should be exported to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.Events.KafkaBrokers) > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
