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

// Paths contains the workspace directory layout. Stage directories left empty
// are derived from WorkspaceDir during normalization.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	AudioDir     string `toml:"audio_dir"`
	ClipsDir     string `toml:"clips_dir"`
	MergedDir    string `toml:"merged_dir"`
	FadedDir     string `toml:"faded_dir"`
	SubtitlesDir string `toml:"subtitles_dir"`
	FinalDir     string `toml:"final_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Media contains ffmpeg/ffprobe settings shared by the compositor and probe.
type Media struct {
	FFmpegBinary          string  `toml:"ffmpeg_binary"`
	FFprobeBinary         string  `toml:"ffprobe_binary"`
	FadeSeconds           float64 `toml:"fade_seconds"`
	CropSize              string  `toml:"crop_size"`
	SegmentSeconds        int     `toml:"segment_seconds"`
	SegmentVolume         float64 `toml:"segment_volume"`
	SegmentPrefix         string  `toml:"segment_prefix"`
	CommandTimeoutSeconds int     `toml:"command_timeout_seconds"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	Command          string `toml:"command"`
	Model            string `toml:"model"`
	CUDAEnabled      bool   `toml:"cuda_enabled"`
	VADMethod        string `toml:"vad_method"`
	HuggingFaceToken string `toml:"hf_token"`
	DefaultLanguage  string `toml:"default_language"`
	Concurrency      int    `toml:"concurrency"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// SubtitleStyle mirrors the fields of an ASS V4+ style line.
type SubtitleStyle struct {
	Name            string `toml:"name"`
	Fontname        string `toml:"fontname"`
	Fontsize        int    `toml:"fontsize"`
	PrimaryColour   string `toml:"primary_colour"`
	SecondaryColour string `toml:"secondary_colour"`
	OutlineColour   string `toml:"outline_colour"`
	BackColour      string `toml:"back_colour"`
	Bold            int    `toml:"bold"`
	Italic          int    `toml:"italic"`
	Underline       int    `toml:"underline"`
	StrikeOut       int    `toml:"strike_out"`
	ScaleX          int    `toml:"scale_x"`
	ScaleY          int    `toml:"scale_y"`
	Spacing         int    `toml:"spacing"`
	Angle           int    `toml:"angle"`
	BorderStyle     int    `toml:"border_style"`
	Outline         int    `toml:"outline"`
	Shadow          int    `toml:"shadow"`
	Alignment       int    `toml:"alignment"`
	MarginL         int    `toml:"margin_l"`
	MarginR         int    `toml:"margin_r"`
	MarginV         int    `toml:"margin_v"`
	Encoding        int    `toml:"encoding"`
}

// Subtitles contains subtitle rendering settings.
type Subtitles struct {
	Style SubtitleStyle `toml:"style"`
}

// Batch contains batch runner settings.
type Batch struct {
	Workers            int   `toml:"workers"`
	Seed               int64 `toml:"seed"`
	Resume             bool  `toml:"resume"`
	CleanIntermediates bool  `toml:"clean_intermediates"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchStarted   bool   `toml:"batch_started"`
	BatchCompleted bool   `toml:"batch_completed"`
	ItemFailures   bool   `toml:"item_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shortforge.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Media         Media         `toml:"media"`
	Transcription Transcription `toml:"transcription"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Batch         Batch         `toml:"batch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
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
	if err := loadEnvFile(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
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

	projectPath, err := filepath.Abs("shortforge.toml")
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

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	encoder := toml.NewEncoder(&b)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

// StageDirs returns every directory a batch run writes to, in pipeline order.
func (c *Config) StageDirs() []string {
	return []string{
		c.Paths.AudioDir,
		c.Paths.ClipsDir,
		c.Paths.MergedDir,
		c.Paths.FadedDir,
		c.Paths.SubtitlesDir,
		c.Paths.FinalDir,
	}
}

// EnsureDirectories creates the workspace, state, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := append([]string{c.Paths.WorkspaceDir}, c.StageDirs()...)
	dirs = append(dirs, c.Paths.StateDir, c.Paths.LogDir)
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

// LedgerPath returns the SQLite ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the workspace lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "shortforge.lock")
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
