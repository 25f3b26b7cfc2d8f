package recordings_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"tracktap/internal/recordings"
	"tracktap/internal/services"
	"tracktap/internal/testsupport"
)

func seedLibrary(t *testing.T) *recordings.Library {
	t.Helper()
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "Road Trip", "B - Two.mp3"), 20)
	testsupport.WriteFile(t, filepath.Join(root, "Road Trip", "A - One.mp3"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "Road Trip", "notes.txt"), 5)
	testsupport.WriteFile(t, filepath.Join(root, "empty", "cover.jpg"), 5)
	testsupport.WriteFile(t, filepath.Join(root, "chill", "C - Three.mp3"), 7)
	if err := os.MkdirAll(filepath.Join(root, ".hidden"), 0o755); err != nil {
		t.Fatal(err)
	}
	return recordings.NewLibrary(root)
}

func TestFoldersListsOnlyRecordings(t *testing.T) {
	lib := seedLibrary(t)
	folders, err := lib.Folders()
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("expected 2 folders, got %+v", folders)
	}
	if folders[0].Name != "chill" || folders[1].Name != "Road Trip" {
		t.Fatalf("unexpected order: %s, %s", folders[0].Name, folders[1].Name)
	}
	trip := folders[1]
	if len(trip.Files) != 2 || trip.Files[0].Name != "A - One.mp3" || trip.Bytes != 30 {
		t.Fatalf("unexpected folder contents: %+v", trip)
	}
}

func TestFoldersMissingRoot(t *testing.T) {
	lib := recordings.NewLibrary(filepath.Join(t.TempDir(), "absent"))
	folders, err := lib.Folders()
	if err != nil || len(folders) != 0 {
		t.Fatalf("expected empty list, got %v, %v", folders, err)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	lib := seedLibrary(t)
	cases := []struct{ folder, name string }{
		{"..", "A - One.mp3"},
		{"Road Trip", "../chill/C - Three.mp3"},
		{"Road Trip/..", "x.mp3"},
		{`Road Trip\..`, "x.mp3"},
		{"Road Trip", ""},
		{"Road Trip", "notes.txt"},
	}
	for _, tc := range cases {
		if _, err := lib.Resolve(tc.folder, tc.name); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Resolve(%q, %q) = %v, want validation error", tc.folder, tc.name, err)
		}
	}
}

func TestResolveFindsRecording(t *testing.T) {
	lib := seedLibrary(t)
	path, err := lib.Resolve("Road Trip", "A - One.mp3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != filepath.Join(lib.Root(), "Road Trip", "A - One.mp3") {
		t.Fatalf("unexpected path %q", path)
	}
	if _, err := lib.Resolve("Road Trip", "Missing.mp3"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWriteArchive(t *testing.T) {
	lib := seedLibrary(t)
	var buf bytes.Buffer
	n, err := lib.WriteArchive(&buf, "Road Trip")
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 files in archive, got %d", len(zr.File))
	}
	if zr.File[0].Name != "Road Trip/A - One.mp3" {
		t.Fatalf("unexpected entry name %q", zr.File[0].Name)
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if len(data) != 20 {
		t.Fatalf("entry size = %d, want 20", len(data))
	}
}

func TestWriteArchiveMissingFolder(t *testing.T) {
	lib := seedLibrary(t)
	if _, err := lib.WriteArchive(io.Discard, "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRootFilesAndRootResolve(t *testing.T) {
	lib := seedLibrary(t)
	testsupport.WriteFile(t, filepath.Join(lib.Root(), "X - Solo.mp3"), 3)

	files, err := lib.RootFiles()
	if err != nil {
		t.Fatalf("RootFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "X - Solo.mp3" {
		t.Fatalf("unexpected root files: %+v", files)
	}
	if _, err := lib.Resolve("", "X - Solo.mp3"); err != nil {
		t.Fatalf("Resolve root file: %v", err)
	}
}
