package config

const (
	defaultDataDir             = "~/.local/share/docflow/data"
	defaultLogDir              = "~/.local/share/docflow/logs"
	defaultAPIBind             = "127.0.0.1:8287"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultStageTimeoutSeconds = 60
	defaultSubscriberBuffer    = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Pipeline: Pipeline{
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			SimulateLatency:     true,
		},
		Events: Events{
			SubscriberBuffer: defaultSubscriberBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
