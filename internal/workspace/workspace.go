package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/fileutil"
	"shortforge/internal/language"
	"shortforge/internal/services"
)

const (
	audioExt    = ".mp3"
	videoExt    = ".mp4"
	subtitleExt = ".ass"
)

// Layout names the directories a batch reads from and writes to. Every
// derived artifact path is namespaced by inference id.
type Layout struct {
	AudioDir     string
	ClipsDir     string
	MergedDir    string
	FadedDir     string
	SubtitlesDir string
	FinalDir     string
}

// FromConfig builds a Layout from normalized configuration.
func FromConfig(cfg *config.Config) Layout {
	return Layout{
		AudioDir:     cfg.Paths.AudioDir,
		ClipsDir:     cfg.Paths.ClipsDir,
		MergedDir:    cfg.Paths.MergedDir,
		FadedDir:     cfg.Paths.FadedDir,
		SubtitlesDir: cfg.Paths.SubtitlesDir,
		FinalDir:     cfg.Paths.FinalDir,
	}
}

// Dirs returns every layout directory in pipeline order.
func (l Layout) Dirs() []string {
	return []string{l.AudioDir, l.ClipsDir, l.MergedDir, l.FadedDir, l.SubtitlesDir, l.FinalDir}
}

// Bootstrap creates any missing layout directories.
func (l Layout) Bootstrap() error {
	for _, dir := range l.Dirs() {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AudioPath returns {audio}/{id}.mp3.
func (l Layout) AudioPath(id string) string {
	return filepath.Join(l.AudioDir, id+audioExt)
}

// MergedPath returns {merged}/{id}.mp4.
func (l Layout) MergedPath(id string) string {
	return filepath.Join(l.MergedDir, id+videoExt)
}

// FadedPath returns {faded}/{id}.mp4.
func (l Layout) FadedPath(id string) string {
	return filepath.Join(l.FadedDir, id+videoExt)
}

// FinalPath returns {final}/{id}.mp4, the name the burner derives from the faded video.
func (l Layout) FinalPath(id string) string {
	return filepath.Join(l.FinalDir, id+videoExt)
}

// SubtitlePath returns {subtitles}/{id}.{lang}.ass.
func (l Layout) SubtitlePath(id, lang string) string {
	return SubtitlePath(l.SubtitlesDir, id, lang)
}

// SubtitlePath returns {dir}/{id}.{lang}.ass.
func SubtitlePath(dir, id, lang string) string {
	return filepath.Join(dir, id+"."+lang+subtitleExt)
}

// FindSubtitle returns an existing non-empty subtitle file for id in any
// language, or false when none exists.
func (l Layout) FindSubtitle(id string) (string, bool) {
	entries, err := os.ReadDir(l.SubtitlesDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := subtitleLanguage(name, id); !ok {
			continue
		}
		path := filepath.Join(l.SubtitlesDir, name)
		if fileutil.NonEmptyFile(path) {
			return path, true
		}
	}
	return "", false
}

// LanguageFromSubtitle extracts the language code from {id}.{lang}.ass, or
// returns "" when path is not a subtitle file of id.
func LanguageFromSubtitle(path, id string) string {
	lang, _ := subtitleLanguage(filepath.Base(path), id)
	return lang
}

// subtitleLanguage reports whether name is exactly {id}.{lang}.ass with lang
// a two-letter code. Ids may contain dots, so "a.en.ass" belongs to item "a"
// and never to item "a.en".
func subtitleLanguage(name, id string) (string, bool) {
	rest, ok := strings.CutPrefix(name, id+".")
	if !ok {
		return "", false
	}
	lang, ok := strings.CutSuffix(rest, subtitleExt)
	if !ok || lang == "" || language.ToISO2(lang) != lang {
		return "", false
	}
	return lang, true
}

// Intermediates lists the per-item files that can be removed once the final
// video exists.
func (l Layout) Intermediates(id string) []string {
	return []string{l.MergedPath(id), l.FadedPath(id)}
}

// ValidateID rejects identifiers that would escape their namespace.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty inference id", services.ErrValidation)
	case id == "." || id == "..":
		return fmt.Errorf("%w: invalid inference id %q", services.ErrValidation, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: inference id %q contains a path separator", services.ErrValidation, id)
	}
	return nil
}

// Audio is one discovered narration file.
type Audio struct {
	ID   string
	Path string
}

// DiscoverAudio enumerates {dir}/*.mp3 sorted by id. Files whose names would
// not make a valid inference id are skipped.
func DiscoverAudio(dir string) ([]Audio, error) {
	names, err := listByExt(dir, audioExt)
	if err != nil {
		return nil, err
	}
	audio := make([]Audio, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if ValidateID(id) != nil {
			continue
		}
		audio = append(audio, Audio{ID: id, Path: filepath.Join(dir, name)})
	}
	return audio, nil
}

// ListClips returns the sorted background clip pool in dir.
func ListClips(dir string) ([]string, error) {
	names, err := listByExt(dir, videoExt)
	if err != nil {
		return nil, err
	}
	clips := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if fileutil.NonEmptyFile(path) {
			clips = append(clips, path)
		}
	}
	return clips, nil
}

func listByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", dir, services.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
