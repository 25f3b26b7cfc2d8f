package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSpotify(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateSpotify() error {
	if c.Spotify.DeviceName == "" {
		return errors.New("spotify.device_name must be set")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if !strings.HasSuffix(c.Encoder.Bitrate, "k") || len(c.Encoder.Bitrate) < 2 {
		return fmt.Errorf("encoder.bitrate must look like \"320k\", got %q", c.Encoder.Bitrate)
	}
	if c.Encoder.Channels > 8 {
		return fmt.Errorf("encoder.channels must be between 1 and 8, got %d", c.Encoder.Channels)
	}
	return nil
}

func (c *Config) validateCapture() error {
	checks := []struct {
		name  string
		value int
		min   int
	}{
		{"capture.start_pad_seconds", c.Capture.StartPadSeconds, 0},
		{"capture.wait_slack_seconds", c.Capture.WaitSlackSeconds, 0},
		{"capture.settle_seconds", c.Capture.SettleSeconds, 0},
		{"capture.discovery_attempts", c.Capture.DiscoveryAttempts, 1},
		{"capture.discovery_interval_seconds", c.Capture.DiscoveryIntervalSeconds, 0},
		{"capture.sink_grace_seconds", c.Capture.SinkGraceSeconds, 0},
	}
	for _, check := range checks {
		if check.value < check.min {
			return fmt.Errorf("%s must be >= %d, got %d", check.name, check.min, check.value)
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Endpoint == "" {
		return errors.New("publish.endpoint must be set when publish.enabled is true")
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish.enabled is true")
	}
	return nil
}
