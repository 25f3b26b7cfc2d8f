package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	out := filepath.Join(base, "out")
	state := filepath.Join(base, "state")
	path := filepath.Join(base, "tracktap.toml")
	content := fmt.Sprintf("[paths]\noutput_dir = %q\nstate_dir = %q\nlog_dir = %q\n", out, state, filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Paths.OutputDir != out {
		t.Fatalf("output dir = %q, want %q", cfg.Paths.OutputDir, out)
	}
	for _, dir := range []string{out, state} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[paths\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRootCommandRejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(os.Stderr)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for positional argument")
	}
}
