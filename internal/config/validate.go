package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var cropSizePattern = regexp.MustCompile(`^\d+:\d+$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	// Stage outputs share basenames ({id}.mp4), so the directories must be distinct.
	dirs := []struct{ key, value string }{
		{"paths.audio_dir", c.Paths.AudioDir},
		{"paths.merged_dir", c.Paths.MergedDir},
		{"paths.faded_dir", c.Paths.FadedDir},
		{"paths.subtitles_dir", c.Paths.SubtitlesDir},
		{"paths.final_dir", c.Paths.FinalDir},
	}
	seen := make(map[string]string, len(dirs))
	for _, dir := range dirs {
		if other, ok := seen[dir.value]; ok {
			return fmt.Errorf("%s and %s must be different directories", other, dir.key)
		}
		seen[dir.value] = dir.key
	}
	return nil
}

func (c *Config) validateMedia() error {
	if math.IsNaN(c.Media.FadeSeconds) || math.IsInf(c.Media.FadeSeconds, 0) || c.Media.FadeSeconds < 0 {
		return errors.New("media.fade_seconds must be a finite value >= 0")
	}
	if !cropSizePattern.MatchString(c.Media.CropSize) {
		return fmt.Errorf("media.crop_size must look like WIDTH:HEIGHT, got %q", c.Media.CropSize)
	}
	if c.Media.SegmentVolume < 0 || c.Media.SegmentVolume > 1 {
		return errors.New("media.segment_volume must be between 0 and 1")
	}
	if strings.ContainsAny(c.Media.SegmentPrefix, `/\%`) {
		return fmt.Errorf("media.segment_prefix contains invalid characters: %q", c.Media.SegmentPrefix)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	if c.Transcription.VADMethod == "pyannote" && c.Transcription.HuggingFaceToken == "" {
		return errors.New("transcription.hf_token is required for the pyannote VAD method (set SHORTFORGE_HF_TOKEN or HF_TOKEN)")
	}
	if len(c.Transcription.DefaultLanguage) != 2 {
		return fmt.Errorf("transcription.default_language must be a two-letter ISO 639-1 code, got %q", c.Transcription.DefaultLanguage)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	style := c.Subtitles.Style
	if strings.Contains(style.Name, ",") || strings.Contains(style.Fontname, ",") {
		return errors.New("subtitles.style name and fontname must not contain commas")
	}
	if style.ScaleX <= 0 || style.ScaleY <= 0 {
		return errors.New("subtitles.style scale_x and scale_y must be positive")
	}
	if style.Alignment < 1 || style.Alignment > 9 {
		return fmt.Errorf("subtitles.style alignment must be between 1 and 9, got %d", style.Alignment)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
