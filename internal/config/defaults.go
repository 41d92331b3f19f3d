package config

const (
	defaultConfigPath        = "~/.config/mediaworker/config.toml"
	defaultLogDir            = "~/.local/share/mediaworker/logs"
	defaultStateDir          = "~/.local/share/mediaworker/state"
	defaultChunkSize         = 1 << 20
	defaultReadTimeout       = 600
	defaultDownloadBinary    = "yt-dlp"
	defaultDownloadFormat    = "best"
	defaultTranscribeCommand = "uvx"
	defaultTranscribeModel   = "large-v3"
	defaultChunkLength       = 30
	defaultMaxNewTokens      = 440
	defaultVADMethod         = "silero"
	defaultLanguage          = "auto"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

var defaultQuietLoggers = []string{"transformers", "pytorch_pretrained_bert"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot(),
			LogDir:        defaultLogDir,
			StateDir:      defaultStateDir,
		},
		Worker: Worker{
			ChunkSize:   defaultChunkSize,
			ReadTimeout: defaultReadTimeout,
		},
		Download: Download{
			Binary: defaultDownloadBinary,
			Format: defaultDownloadFormat,
		},
		Transcription: Transcription{
			Command:         defaultTranscribeCommand,
			Model:           defaultTranscribeModel,
			ChunkLength:     defaultChunkLength,
			MaxNewTokens:    defaultMaxNewTokens,
			CPUFallback:     true,
			VADMethod:       defaultVADMethod,
			DefaultLanguage: defaultLanguage,
			QuietLoggers:    append([]string(nil), defaultQuietLoggers...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
