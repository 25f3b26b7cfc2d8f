package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tracktap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "recordings")
	cfgVal.Paths.PlaylistsDir = filepath.Join(base, "playlists")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Spotify.AccessToken = "test-token"
	cfgVal.Librespot.CacheDir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSpotifyAPI points the Web API and token endpoints at a test server.
func WithSpotifyAPI(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Spotify.APIBaseURL = baseURL + "/v1"
		b.cfg.Spotify.AccountsURL = baseURL + "/api/token"
	}
}

// WithPipePath configures a fixed pipe path.
func WithPipePath(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.PipePath = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default tracktap external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "librespot"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// WithBinaries sets explicit encoder and sink binary paths.
func WithBinaries(encoder, sink string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoder.Binary = encoder
		b.cfg.Librespot.Binary = sink
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
