package config

const (
	defaultStateDir              = "~/.local/share/tagsmith"
	defaultLogDir                = "~/.local/share/tagsmith/logs"
	defaultAPIBind               = "127.0.0.1:8787"
	defaultRemoteBase            = "https://demo.plone.org/++api++/"
	defaultRequestTimeoutSeconds = 15
	defaultSimilarityThreshold   = 70
	defaultMaxLengthDiff         = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Remote: Remote{
			DefaultBase:           defaultRemoteBase,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Similarity: Similarity{
			DefaultThreshold: defaultSimilarityThreshold,
			MaxLengthDiff:    defaultMaxLengthDiff,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
