package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tracktap/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REFRESH_TOKEN", "SPOTIFY_ACCESS_TOKEN",
		"TRACKTAP_API_TOKEN", "TRACKTAP_PIPE_PATH", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(home)
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "refresh-from-env")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(home, "Music", "tracktap"); cfg.Paths.OutputDir != want {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "tracktap", "state"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Paths.PipePath != "" {
		t.Fatalf("expected no fixed pipe by default, got %q", cfg.Paths.PipePath)
	}
	if cfg.Spotify.RefreshToken != "refresh-from-env" {
		t.Fatalf("expected refresh token from env, got %q", cfg.Spotify.RefreshToken)
	}
	if cfg.HasSpotifyCredentials() {
		t.Fatal("expected incomplete credentials without client id/secret")
	}
	if cfg.Capture.StartPadSeconds != 3 || cfg.Capture.WaitSlackSeconds != 10 || cfg.Capture.SettleSeconds != 5 {
		t.Fatalf("unexpected capture timing defaults: %+v", cfg.Capture)
	}
	if cfg.Capture.DiscoveryAttempts != 6 || cfg.Capture.DiscoveryIntervalSeconds != 2 {
		t.Fatalf("unexpected discovery defaults: %+v", cfg.Capture)
	}
	if cfg.Encoder.Bitrate != "320k" || cfg.Encoder.SampleRate != 44100 || cfg.Encoder.Channels != 2 {
		t.Fatalf("unexpected encoder defaults: %+v", cfg.Encoder)
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.PlaylistsDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tracktap.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
			PipePath  string `toml:"pipe_path"`
		} `toml:"paths"`
		Spotify struct {
			DeviceName string `toml:"device_name"`
		} `toml:"spotify"`
		Capture struct {
			SettleSeconds int `toml:"settle_seconds"`
		} `toml:"capture"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Paths.PipePath = filepath.Join(tempDir, "audio.pipe")
	custom.Spotify.DeviceName = "  Studio Rig  "
	custom.Capture.SettleSeconds = 1
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.PipePath != custom.Paths.PipePath {
		t.Fatalf("unexpected pipe path %q", cfg.Paths.PipePath)
	}
	if cfg.Spotify.DeviceName != "Studio Rig" {
		t.Fatalf("expected trimmed device name, got %q", cfg.Spotify.DeviceName)
	}
	if cfg.Capture.SettleSeconds != 1 {
		t.Fatalf("expected settle override, got %d", cfg.Capture.SettleSeconds)
	}
	if cfg.Capture.DiscoveryAttempts != 6 {
		t.Fatalf("expected untouched default discovery attempts, got %d", cfg.Capture.DiscoveryAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tracktap.toml")
	if err := os.WriteFile(configPath, []byte("[spotify]\ndevice_name = \"rig\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "SPOTIFY_CLIENT_ID=from-dotenv\nSPOTIFY_CLIENT_SECRET=secret-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret-env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Spotify.ClientID != "from-dotenv" {
		t.Fatalf("expected client id from .env, got %q", cfg.Spotify.ClientID)
	}
	if cfg.Spotify.ClientSecret != "secret-env" {
		t.Fatalf("expected environment to win over .env, got %q", cfg.Spotify.ClientSecret)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty device", func(c *config.Config) { c.Spotify.DeviceName = "" }, "device_name"},
		{"bad bitrate", func(c *config.Config) { c.Encoder.Bitrate = "320" }, "encoder.bitrate"},
		{"zero attempts", func(c *config.Config) { c.Capture.DiscoveryAttempts = 0 }, "discovery_attempts"},
		{"negative pad", func(c *config.Config) { c.Capture.StartPadSeconds = -1 }, "start_pad_seconds"},
		{"publish without bucket", func(c *config.Config) {
			c.Publish.Enabled = true
			c.Publish.Endpoint = "minio:9000"
		}, "publish.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Spotify.DeviceName != "tracktap" {
		t.Fatalf("unexpected sample device name %q", cfg.Spotify.DeviceName)
	}
}
