package config

const (
	defaultConfigPath            = "~/.config/shortforge/config.toml"
	defaultWorkspaceDir          = "~/.local/share/shortforge/workspace"
	defaultLogDir                = "~/.local/share/shortforge/logs"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultFadeSeconds           = 2.0
	defaultCropSize              = "405:720"
	defaultSegmentSeconds        = 60
	defaultSegmentVolume         = 1.0
	defaultSegmentPrefix         = "clip"
	defaultCommandTimeoutSeconds = 1800
	defaultTranscriptionCommand  = "uvx"
	defaultWhisperXModel         = "small"
	defaultVADMethod             = "silero"
	defaultLanguage              = "en"
	defaultTranscriptionWorkers  = 1
	defaultTranscriptionTimeout  = 1800
	defaultBatchWorkers          = 1
	defaultNotifyTimeout         = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"

	audioDirName     = "raw_audio"
	clipsDirName     = "clips"
	mergedDirName    = "merged"
	fadedDirName     = "faded"
	subtitlesDirName = "subtitles"
	finalDirName     = "final"
	stateDirName     = "state"
)

// DefaultSubtitleStyle returns the stock style line used for burned captions.
func DefaultSubtitleStyle() SubtitleStyle {
	return SubtitleStyle{
		Name:            "Default",
		Fontname:        "Skia",
		Fontsize:        12,
		PrimaryColour:   "&H003a98fc",
		SecondaryColour: "&H000000FF",
		OutlineColour:   "&H00000000",
		BackColour:      "&H80000000",
		Bold:            -1,
		ScaleX:          100,
		ScaleY:          100,
		BorderStyle:     1,
		Alignment:       2,
		MarginL:         10,
		MarginR:         10,
		MarginV:         10,
		Encoding:        1,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Media: Media{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			FadeSeconds:           defaultFadeSeconds,
			CropSize:              defaultCropSize,
			SegmentSeconds:        defaultSegmentSeconds,
			SegmentVolume:         defaultSegmentVolume,
			SegmentPrefix:         defaultSegmentPrefix,
			CommandTimeoutSeconds: defaultCommandTimeoutSeconds,
		},
		Transcription: Transcription{
			Command:         defaultTranscriptionCommand,
			Model:           defaultWhisperXModel,
			VADMethod:       defaultVADMethod,
			DefaultLanguage: defaultLanguage,
			Concurrency:     defaultTranscriptionWorkers,
			TimeoutSeconds:  defaultTranscriptionTimeout,
		},
		Subtitles: Subtitles{
			Style: DefaultSubtitleStyle(),
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
			Resume:  true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			BatchStarted:   true,
			BatchCompleted: true,
			ItemFailures:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
