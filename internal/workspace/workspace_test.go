package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shortforge/internal/services"
	"shortforge/internal/testsupport"
	"shortforge/internal/workspace"
)

func TestDerivedPathsAreNamespacedByID(t *testing.T) {
	layout := workspace.Layout{
		MergedDir:    "/w/merged",
		FadedDir:     "/w/faded",
		SubtitlesDir: "/w/subtitles",
		FinalDir:     "/w/final",
	}

	a := []string{layout.MergedPath("a"), layout.FadedPath("a"), layout.SubtitlePath("a", "en"), layout.FinalPath("a")}
	b := []string{layout.MergedPath("b"), layout.FadedPath("b"), layout.SubtitlePath("b", "en"), layout.FinalPath("b")}
	for i := range a {
		if a[i] == b[i] {
			t.Fatalf("paths collide for different ids: %q", a[i])
		}
	}
	if got := layout.SubtitlePath("abc123", "en"); got != "/w/subtitles/abc123.en.ass" {
		t.Fatalf("unexpected subtitle path %q", got)
	}
	if got := layout.FinalPath("abc123"); got != "/w/final/abc123.mp4" {
		t.Fatalf("unexpected final path %q", got)
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"", " ", ".", "..", "a/b", `a\b`} {
		if err := workspace.ValidateID(id); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected %q rejected, got %v", id, err)
		}
	}
	for _, id := range []string{"abc123", "video-1.final"} {
		if err := workspace.ValidateID(id); err != nil {
			t.Fatalf("expected %q accepted, got %v", id, err)
		}
	}
}

func TestDiscoverAudioSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteAudioFiles(t, dir, "zeta", "alpha", "mid")
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(dir, ".hidden.mp3"), 10)
	if err := os.Mkdir(filepath.Join(dir, "folder.mp3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	audio, err := workspace.DiscoverAudio(dir)
	if err != nil {
		t.Fatalf("DiscoverAudio failed: %v", err)
	}
	if len(audio) != 3 {
		t.Fatalf("expected 3 audio files, got %+v", audio)
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if audio[i].ID != want || audio[i].Path != filepath.Join(dir, want+".mp3") {
			t.Fatalf("unexpected audio[%d]: %+v", i, audio[i])
		}
	}
}

func TestDiscoverAudioMissingDir(t *testing.T) {
	_, err := workspace.DiscoverAudio(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListClipsSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	clips := testsupport.WriteClips(t, dir, 2)
	if err := os.WriteFile(filepath.Join(dir, "clip_999.mp4"), nil, 0o644); err != nil {
		t.Fatalf("write empty clip: %v", err)
	}

	got, err := workspace.ListClips(dir)
	if err != nil {
		t.Fatalf("ListClips failed: %v", err)
	}
	if len(got) != 2 || got[0] != clips[0] || got[1] != clips[1] {
		t.Fatalf("unexpected clips: %v", got)
	}
}

func TestFindSubtitle(t *testing.T) {
	dir := t.TempDir()
	layout := workspace.Layout{SubtitlesDir: dir}

	if _, ok := layout.FindSubtitle("abc"); ok {
		t.Fatal("expected no subtitle in empty dir")
	}
	testsupport.WriteFile(t, filepath.Join(dir, "abc.def.en.ass"), 10)
	if _, ok := layout.FindSubtitle("abc"); ok {
		t.Fatal("subtitle for a different id must not match")
	}
	want := filepath.Join(dir, "abc.fr.ass")
	testsupport.WriteFile(t, want, 10)
	got, ok := layout.FindSubtitle("abc")
	if !ok || got != want {
		t.Fatalf("expected %q, got %q ok=%v", want, got, ok)
	}
	if lang := workspace.LanguageFromSubtitle(got, "abc"); lang != "fr" {
		t.Fatalf("unexpected language %q", lang)
	}
}

func TestFindSubtitleKeepsDottedIDsApart(t *testing.T) {
	dir := t.TempDir()
	layout := workspace.Layout{SubtitlesDir: dir}
	testsupport.WriteFile(t, filepath.Join(dir, "a.en.ass"), 10)

	if path, ok := layout.FindSubtitle("a.en"); ok {
		t.Fatalf("item a.en must not match item a's subtitle, got %q", path)
	}
	if got, ok := layout.FindSubtitle("a"); !ok || filepath.Base(got) != "a.en.ass" {
		t.Fatalf("expected a.en.ass for item a, got %q ok=%v", got, ok)
	}

	testsupport.WriteFile(t, filepath.Join(dir, "a.en.de.ass"), 10)
	got, ok := layout.FindSubtitle("a.en")
	if !ok || filepath.Base(got) != "a.en.de.ass" {
		t.Fatalf("expected a.en.de.ass, got %q ok=%v", got, ok)
	}
	if lang := workspace.LanguageFromSubtitle(got, "a.en"); lang != "de" {
		t.Fatalf("unexpected language %q", lang)
	}
	if lang := workspace.LanguageFromSubtitle(filepath.Join(dir, "a.en.ass"), "a.en"); lang != "" {
		t.Fatalf("expected no language for a foreign file, got %q", lang)
	}
}

func TestBootstrapCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	layout := workspace.Layout{
		AudioDir:     filepath.Join(base, "raw_audio"),
		ClipsDir:     filepath.Join(base, "clips"),
		MergedDir:    filepath.Join(base, "merged"),
		FadedDir:     filepath.Join(base, "faded"),
		SubtitlesDir: filepath.Join(base, "subtitles"),
		FinalDir:     filepath.Join(base, "final"),
	}
	if err := layout.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if err := layout.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap must be idempotent: %v", err)
	}
	for _, dir := range layout.Dirs() {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %q to exist", dir)
		}
	}
}
