package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeTranscription()
	c.normalizeSubtitles()
	c.normalizeBatch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}

	stageDirs := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.audio_dir", &c.Paths.AudioDir, audioDirName},
		{"paths.clips_dir", &c.Paths.ClipsDir, clipsDirName},
		{"paths.merged_dir", &c.Paths.MergedDir, mergedDirName},
		{"paths.faded_dir", &c.Paths.FadedDir, fadedDirName},
		{"paths.subtitles_dir", &c.Paths.SubtitlesDir, subtitlesDirName},
		{"paths.final_dir", &c.Paths.FinalDir, finalDirName},
		{"paths.state_dir", &c.Paths.StateDir, stateDirName},
	}
	for _, dir := range stageDirs {
		if strings.TrimSpace(*dir.value) == "" {
			*dir.value = filepath.Join(c.Paths.WorkspaceDir, dir.name)
		}
		if *dir.value, err = expandPath(*dir.value); err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.CropSize = strings.TrimSpace(c.Media.CropSize)
	if c.Media.CropSize == "" {
		c.Media.CropSize = defaultCropSize
	}
	c.Media.SegmentPrefix = strings.TrimSpace(c.Media.SegmentPrefix)
	if c.Media.SegmentPrefix == "" {
		c.Media.SegmentPrefix = defaultSegmentPrefix
	}
	if c.Media.SegmentSeconds <= 0 {
		c.Media.SegmentSeconds = defaultSegmentSeconds
	}
	if c.Media.CommandTimeoutSeconds < 0 {
		c.Media.CommandTimeoutSeconds = 0
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Command = strings.TrimSpace(c.Transcription.Command)
	if c.Transcription.Command == "" {
		c.Transcription.Command = defaultTranscriptionCommand
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HuggingFaceToken = strings.TrimSpace(c.Transcription.HuggingFaceToken)
	if c.Transcription.HuggingFaceToken == "" {
		if value, ok := os.LookupEnv("SHORTFORGE_HF_TOKEN"); ok {
			c.Transcription.HuggingFaceToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HuggingFaceToken = strings.TrimSpace(value)
		}
	}
	c.Transcription.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Transcription.DefaultLanguage))
	if c.Transcription.DefaultLanguage == "" {
		c.Transcription.DefaultLanguage = defaultLanguage
	}
	if c.Transcription.Concurrency <= 0 {
		c.Transcription.Concurrency = defaultTranscriptionWorkers
	}
	if c.Transcription.TimeoutSeconds < 0 {
		c.Transcription.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeSubtitles() {
	style := &c.Subtitles.Style
	defaults := DefaultSubtitleStyle()
	style.Name = strings.TrimSpace(style.Name)
	if style.Name == "" {
		style.Name = defaults.Name
	}
	style.Fontname = strings.TrimSpace(style.Fontname)
	if style.Fontname == "" {
		style.Fontname = defaults.Fontname
	}
	if style.Fontsize <= 0 {
		style.Fontsize = defaults.Fontsize
	}
	for _, colour := range []struct {
		value    *string
		fallback string
	}{
		{&style.PrimaryColour, defaults.PrimaryColour},
		{&style.SecondaryColour, defaults.SecondaryColour},
		{&style.OutlineColour, defaults.OutlineColour},
		{&style.BackColour, defaults.BackColour},
	} {
		*colour.value = strings.TrimSpace(*colour.value)
		if *colour.value == "" {
			*colour.value = colour.fallback
		}
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHORTFORGE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
