package pipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tracktap/internal/services"
)

// UnsupportedHint is surfaced when the platform cannot create named pipes.
const UnsupportedHint = "use an environment where named pipes are supported"

const synthesizedName = "audio.pcm"

// Endpoint is an opened FIFO owned by one capture job.
type Endpoint struct {
	path        string
	synthesized bool
	tempDir     string
	once        sync.Once
	closeErr    error
}

// Provider opens pipe endpoints. The capture job depends on this interface so
// tests can substitute failing or in-memory implementations.
type Provider interface {
	Open(preferred string) (*Endpoint, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(preferred string) (*Endpoint, error)

// Open calls f.
func (f ProviderFunc) Open(preferred string) (*Endpoint, error) { return f(preferred) }

// FIFO is the default Provider backed by mkfifo.
type FIFO struct{}

// Open implements Provider.
func (FIFO) Open(preferred string) (*Endpoint, error) { return Open(preferred) }

// Open returns an endpoint at preferred, creating the FIFO when it does not
// exist yet. With an empty preferred path a unique FIFO is synthesized.
func Open(preferred string) (*Endpoint, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		if err := ensureFIFO(preferred); err != nil {
			return nil, err
		}
		return &Endpoint{path: preferred}, nil
	}

	dir, err := os.MkdirTemp("", "tracktap-")
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "pipe", "open", "create temp dir", err)
	}
	path := filepath.Join(dir, synthesizedName)
	if err := mkfifo(path); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &Endpoint{path: path, synthesized: true, tempDir: dir}, nil
}

// NewExisting wraps a path without creating anything. Close never removes it.
func NewExisting(path string) *Endpoint {
	return &Endpoint{path: path}
}

// Path returns the filesystem path of the endpoint.
func (e *Endpoint) Path() string {
	if e == nil {
		return ""
	}
	return e.path
}

// Synthesized reports whether Close will remove the endpoint.
func (e *Endpoint) Synthesized() bool {
	return e != nil && e.synthesized
}

// Close removes a synthesized endpoint. It is idempotent and leaves
// caller-provided paths in place.
func (e *Endpoint) Close() error {
	if e == nil {
		return nil
	}
	e.once.Do(func() {
		if !e.synthesized {
			return
		}
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.closeErr = fmt.Errorf("remove pipe: %w", err)
		}
		if e.tempDir != "" {
			if err := os.RemoveAll(e.tempDir); err != nil && e.closeErr == nil {
				e.closeErr = fmt.Errorf("remove pipe dir: %w", err)
			}
		}
	})
	return e.closeErr
}

func ensureFIFO(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode()&fs.ModeNamedPipe == 0 {
			return services.Wrap(services.ErrResource, "pipe", "open",
				fmt.Sprintf("%s exists and is not a named pipe", path), nil)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if dir := filepath.Dir(path); dir != "" {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return services.Wrap(services.ErrResource, "pipe", "open", "create pipe directory", mkErr)
			}
		}
		return mkfifo(path)
	default:
		return services.Wrap(services.ErrResource, "pipe", "open", "stat pipe", err)
	}
}
