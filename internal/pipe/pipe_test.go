//go:build unix

package pipe_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"tracktap/internal/pipe"
	"tracktap/internal/services"
)

func TestOpenSynthesizedCreatesAndRemovesFIFO(t *testing.T) {
	endpoint, err := pipe.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !endpoint.Synthesized() {
		t.Fatal("expected synthesized endpoint")
	}
	info, err := os.Stat(endpoint.Path())
	if err != nil {
		t.Fatalf("stat pipe: %v", err)
	}
	if info.Mode()&fs.ModeNamedPipe == 0 {
		t.Fatalf("expected named pipe, got mode %v", info.Mode())
	}

	if err := endpoint.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(endpoint.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected pipe removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(endpoint.Path())); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected temp dir removed, stat err = %v", err)
	}
	if err := endpoint.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}

func TestOpenPreferredIsCreatedButNeverRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixed", "record.fifo")

	endpoint, err := pipe.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if endpoint.Path() != path || endpoint.Synthesized() {
		t.Fatalf("unexpected endpoint %q synthesized=%v", endpoint.Path(), endpoint.Synthesized())
	}
	if err := endpoint.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("fixed path must survive Close: %v", err)
	}

	again, err := pipe.Open(path)
	if err != nil {
		t.Fatalf("reopen existing FIFO: %v", err)
	}
	_ = again.Close()
}

func TestOpenPreferredRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := pipe.Open(path)
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
}

func TestCloseAfterExternalRemovalIsNotAnError(t *testing.T) {
	endpoint, err := pipe.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.RemoveAll(filepath.Dir(endpoint.Path())); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := endpoint.Close(); err != nil {
		t.Fatalf("Close after removal: %v", err)
	}
}
