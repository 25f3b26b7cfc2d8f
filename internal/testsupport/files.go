package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parents, holding size bytes of
// filler. Recording tests only care about names and sizes, so the content is
// constant. A non-positive size still produces a one-byte file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeFile(t, path, bytes.Repeat([]byte{'r'}, int(max(size, 1))), 0o644)
}

// WriteScript writes an executable /bin/sh stub named name into dir and
// returns its path. Tests use it to stand in for ffmpeg and librespot.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	writeFile(t, target, []byte("#!/bin/sh\n"+body), 0o755)
	return target
}

func writeFile(t testing.TB, path string, data []byte, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
