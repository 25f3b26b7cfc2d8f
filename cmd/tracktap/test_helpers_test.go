package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir      string
	configPath   string
	outputDir    string
	playlistsDir string
	stateDir     string
	logDir       string
}

type cliOption func(*strings.Builder)

func withEncoderBinary(path string) cliOption {
	return func(b *strings.Builder) {
		fmt.Fprintf(b, "\n[encoder]\nbinary = %q\n", path)
	}
}

func setupCLITestEnv(t *testing.T, opts ...cliOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"SPOTIFY_ACCESS_TOKEN", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REFRESH_TOKEN", "TRACKTAP_API_TOKEN", "TRACKTAP_PIPE_PATH"} {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{
		baseDir:      base,
		configPath:   filepath.Join(homeDir, ".config", "tracktap", "config.toml"),
		outputDir:    filepath.Join(base, "recordings"),
		playlistsDir: filepath.Join(base, "playlists"),
		stateDir:     filepath.Join(base, "state"),
		logDir:       filepath.Join(base, "logs"),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\noutput_dir = %q\nplaylists_dir = %q\nlog_dir = %q\nstate_dir = %q\napi_bind = %q\n",
		env.outputDir, env.playlistsDir, env.logDir, env.stateDir, "127.0.0.1:0")
	for _, opt := range opts {
		opt(&b)
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writePlaylistFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
