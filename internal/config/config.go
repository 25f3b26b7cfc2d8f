package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	PlaylistsDir string `toml:"playlists_dir"`
	LogDir       string `toml:"log_dir"`
	StateDir     string `toml:"state_dir"`
	PipePath     string `toml:"pipe_path"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Spotify contains Web API credentials and endpoints used to trigger playback.
type Spotify struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RefreshToken   string `toml:"refresh_token"`
	AccessToken    string `toml:"access_token"`
	APIBaseURL     string `toml:"api_base_url"`
	AccountsURL    string `toml:"accounts_url"`
	DeviceName     string `toml:"device_name"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Librespot contains settings for the decoding/playback-sink process.
type Librespot struct {
	Binary    string   `toml:"binary"`
	Bitrate   int      `toml:"bitrate"`
	CacheDir  string   `toml:"cache_dir"`
	Backend   string   `toml:"backend"`
	ExtraArgs []string `toml:"extra_args"`
}

// Encoder contains settings for the ffmpeg encoding process.
type Encoder struct {
	Binary     string `toml:"binary"`
	Bitrate    string `toml:"bitrate"`
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	Codec      string `toml:"codec"`
	Extension  string `toml:"extension"`
}

// Capture contains the timing policy for a single track capture.
type Capture struct {
	StartPadSeconds          int  `toml:"start_pad_seconds"`
	WaitSlackSeconds         int  `toml:"wait_slack_seconds"`
	SettleSeconds            int  `toml:"settle_seconds"`
	DiscoveryAttempts        int  `toml:"discovery_attempts"`
	DiscoveryIntervalSeconds int  `toml:"discovery_interval_seconds"`
	SinkGraceSeconds         int  `toml:"sink_grace_seconds"`
	DiagnosticLines          int  `toml:"diagnostic_lines"`
	SkipExisting             bool `toml:"skip_existing"`
	FileNameMaxLength        int  `toml:"filename_max_length"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Publish contains configuration for uploading recordings to S3-compatible storage.
type Publish struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for tracktap.
//
// Configuration sections by subsystem:
//   - Paths: output, playlist catalog, state directories, pipe and API bind
//   - Spotify: Web API credentials and the advertised device name
//   - Librespot: sink process binary and arguments
//   - Encoder: ffmpeg binary and output format
//   - Capture: timing pads, device discovery retries, teardown grace
//   - Notifications: ntfy push notification settings
//   - Publish: optional object-storage upload of finished recordings
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Spotify       Spotify       `toml:"spotify"`
	Librespot     Librespot     `toml:"librespot"`
	Encoder       Encoder       `toml:"encoder"`
	Capture       Capture       `toml:"capture"`
	Notifications Notifications `toml:"notifications"`
	Publish       Publish       `toml:"publish"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tracktap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files from the working directory and the config
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tracktap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for capture operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.PlaylistsDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the SQLite capture journal.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the lock file that serializes captures across processes.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "capture.lock")
}

// HasSpotifyCredentials reports whether enough credentials exist to call the Web API.
func (c *Config) HasSpotifyCredentials() bool {
	if strings.TrimSpace(c.Spotify.AccessToken) != "" {
		return true
	}
	return strings.TrimSpace(c.Spotify.ClientID) != "" &&
		strings.TrimSpace(c.Spotify.ClientSecret) != "" &&
		strings.TrimSpace(c.Spotify.RefreshToken) != ""
}

// SpotifyTimeout returns the per-request timeout for Web API calls.
func (c *Config) SpotifyTimeout() time.Duration {
	return time.Duration(c.Spotify.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
