package config

const (
	defaultConfigPath             = "~/.config/mediaflow/config.toml"
	defaultStorageDir             = "~/.local/share/mediaflow/storage"
	defaultLogDir                 = "~/.local/share/mediaflow/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultWorkerCount            = 3
	defaultEventBuffer            = 256
	defaultShutdownTimeoutSeconds = 30
	defaultYtDlpBinary            = "yt-dlp"
	defaultFFmpegBinary           = "ffmpeg"
	defaultUserAgent              = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultQuality                = "best"
	defaultUploadTarget           = "directory"
	defaultSimulateDelayMS        = 1000
	defaultNotifyRequestTimeout   = 10
	defaultKafkaTopic             = "mediaflow.events"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultStreamCapacity         = 4096
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Workflow: Workflow{
			WorkerCount:           defaultWorkerCount,
			EventBuffer:           defaultEventBuffer,
			ShutdownTimeoutSecond: defaultShutdownTimeoutSeconds,
		},
		Tools: Tools{
			YtDlpBinary:    defaultYtDlpBinary,
			FFmpegBinary:   defaultFFmpegBinary,
			UserAgent:      defaultUserAgent,
			DefaultQuality: defaultQuality,
		},
		Upload: Upload{
			DefaultTarget:   defaultUploadTarget,
			SimulateDelayMS: defaultSimulateDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyRequestTimeout,
			WorkflowCompleted: true,
			WorkflowFailed:    true,
		},
		Events: Events{
			KafkaTopic: defaultKafkaTopic,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			StreamCapacity: defaultStreamCapacity,
		},
		Scheduler: Scheduler{
			Enabled: true,
		},
	}
}
