package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSpotify()
	if err := c.normalizeLibrespot(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeCapture()
	c.normalizeNotifications()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.PlaylistsDir, err = expandPath(c.Paths.PlaylistsDir); err != nil {
		return fmt.Errorf("paths.playlists_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PipePath) == "" {
		if value, ok := os.LookupEnv("TRACKTAP_PIPE_PATH"); ok {
			c.Paths.PipePath = strings.TrimSpace(value)
		}
	}
	if c.Paths.PipePath, err = expandPath(strings.TrimSpace(c.Paths.PipePath)); err != nil {
		return fmt.Errorf("paths.pipe_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TRACKTAP_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSpotify() {
	c.Spotify.ClientID = envFallback(c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	c.Spotify.ClientSecret = envFallback(c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	c.Spotify.RefreshToken = envFallback(c.Spotify.RefreshToken, "SPOTIFY_REFRESH_TOKEN")
	c.Spotify.AccessToken = envFallback(c.Spotify.AccessToken, "SPOTIFY_ACCESS_TOKEN")
	c.Spotify.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.APIBaseURL), "/")
	if c.Spotify.APIBaseURL == "" {
		c.Spotify.APIBaseURL = defaultSpotifyAPIBaseURL
	}
	c.Spotify.AccountsURL = strings.TrimSpace(c.Spotify.AccountsURL)
	if c.Spotify.AccountsURL == "" {
		c.Spotify.AccountsURL = defaultSpotifyAccountsURL
	}
	c.Spotify.DeviceName = strings.TrimSpace(c.Spotify.DeviceName)
	if c.Spotify.RequestTimeout <= 0 {
		c.Spotify.RequestTimeout = defaultSpotifyRequestTimeout
	}
}

func (c *Config) normalizeLibrespot() error {
	c.Librespot.Binary = strings.TrimSpace(c.Librespot.Binary)
	if c.Librespot.Binary == "" {
		c.Librespot.Binary = defaultLibrespotBinary
	}
	if c.Librespot.Bitrate <= 0 {
		c.Librespot.Bitrate = defaultLibrespotBitrate
	}
	c.Librespot.Backend = strings.ToLower(strings.TrimSpace(c.Librespot.Backend))
	if c.Librespot.Backend == "" {
		c.Librespot.Backend = defaultLibrespotBackend
	}
	var err error
	if c.Librespot.CacheDir, err = expandPath(strings.TrimSpace(c.Librespot.CacheDir)); err != nil {
		return fmt.Errorf("librespot.cache_dir: %w", err)
	}
	args := make([]string, 0, len(c.Librespot.ExtraArgs))
	for _, arg := range c.Librespot.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Librespot.ExtraArgs = args
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Binary = strings.TrimSpace(c.Encoder.Binary)
	if c.Encoder.Binary == "" {
		c.Encoder.Binary = defaultEncoderBinary
	}
	c.Encoder.Bitrate = strings.ToLower(strings.TrimSpace(c.Encoder.Bitrate))
	if c.Encoder.Bitrate == "" {
		c.Encoder.Bitrate = defaultEncoderBitrate
	}
	if c.Encoder.SampleRate <= 0 {
		c.Encoder.SampleRate = defaultEncoderSampleRate
	}
	if c.Encoder.Channels <= 0 {
		c.Encoder.Channels = defaultEncoderChannels
	}
	c.Encoder.Codec = strings.TrimSpace(c.Encoder.Codec)
	if c.Encoder.Codec == "" {
		c.Encoder.Codec = defaultEncoderCodec
	}
	c.Encoder.Extension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoder.Extension)), ".")
	if c.Encoder.Extension == "" {
		c.Encoder.Extension = defaultEncoderExtension
	}
}

func (c *Config) normalizeCapture() {
	if c.Capture.DiagnosticLines <= 0 {
		c.Capture.DiagnosticLines = defaultDiagnosticLines
	}
	if c.Capture.FileNameMaxLength <= 0 {
		c.Capture.FileNameMaxLength = defaultFileNameMaxLength
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizePublish() {
	c.Publish.Endpoint = strings.TrimSpace(c.Publish.Endpoint)
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
	if c.Publish.Region == "" {
		c.Publish.Region = defaultPublishRegion
	}
	c.Publish.AccessKey = envFallback(c.Publish.AccessKey, "MINIO_ACCESS_KEY")
	c.Publish.SecretKey = envFallback(c.Publish.SecretKey, "MINIO_SECRET_KEY")
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}
