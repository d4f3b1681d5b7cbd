package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteAudioFiles creates {dir}/{id}.mp3 for each id and returns the paths.
func WriteAudioFiles(t testing.TB, dir string, ids ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		path := filepath.Join(dir, id+".mp3")
		WriteFile(t, path, 1024)
		paths = append(paths, path)
	}
	return paths
}

// WriteClips creates numbered background clips in dir and returns the paths.
func WriteClips(t testing.TB, dir string, count int) []string {
	t.Helper()

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		WriteFile(t, path, 2048)
		paths = append(paths, path)
	}
	return paths
}
