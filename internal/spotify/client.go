package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/services"
)

const (
	defaultBaseURL           = "https://api.spotify.com/v1"
	defaultDiscoveryAttempts = 6
	defaultDiscoveryInterval = 2 * time.Second
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Device is one entry of the account's Connect device list.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsActive     bool   `json:"is_active"`
	IsRestricted bool   `json:"is_restricted"`
}

// SleepFunc pauses between discovery attempts. It returns early with the
// context error when ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for Web API calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithBaseURL overrides the Web API base URL (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithDiscovery overrides the device discovery retry policy.
func WithDiscovery(attempts int, interval time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.interval = interval
	}
}

// WithSleep replaces the pause used between discovery attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "spotify")
	}
}

// Client talks to the Web API player endpoints.
type Client struct {
	baseURL  string
	http     HTTPDoer
	tokens   TokenSource
	attempts int
	interval time.Duration
	sleep    SleepFunc
	logger   *slog.Logger
}

// New builds a Client. A nil tokens falls back to NewTokenSource(cfg.Spotify).
func New(cfg *config.Config, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		attempts: defaultDiscoveryAttempts,
		interval: defaultDiscoveryInterval,
		sleep:    SleepContext,
		logger:   logging.NewNop(),
	}
	timeout := 10 * time.Second
	if cfg != nil {
		if base := strings.TrimSpace(cfg.Spotify.APIBaseURL); base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
		if cfg.Capture.DiscoveryAttempts > 0 {
			c.attempts = cfg.Capture.DiscoveryAttempts
		}
		if cfg.Capture.DiscoveryIntervalSeconds > 0 {
			c.interval = time.Duration(cfg.Capture.DiscoveryIntervalSeconds) * time.Second
		}
		if t := cfg.SpotifyTimeout(); t > 0 {
			timeout = t
		}
	}
	c.http = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: timeout}
	}
	if tokens == nil {
		var spotifyCfg config.Spotify
		if cfg != nil {
			spotifyCfg = cfg.Spotify
		}
		tokens = NewTokenSource(spotifyCfg, c.http)
	}
	c.tokens = tokens
	if c.sleep == nil {
		c.sleep = SleepContext
	}
	return c
}

// Authorize obtains a token without calling the player API. Missing or
// rejected credentials fail with services.ErrRemoteAuth; an unreachable
// accounts service fails with services.ErrTransient.
func (c *Client) Authorize(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Devices lists the account's currently visible Connect devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var payload struct {
		Devices []Device `json:"devices"`
	}
	status, body, err := c.do(ctx, http.MethodGet, "/me/player/devices", nil, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, services.Wrap(services.ErrTransient, "spotify", "list devices",
			fmt.Sprintf("status %d: %s", status, apiMessage(body)), nil)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "spotify", "list devices", "decode response", err)
	}
	return payload.Devices, nil
}

// FindDevice returns the id of the first device whose name contains name,
// compared case-insensitively.
func (c *Client) FindDevice(ctx context.Context, name string) (string, bool, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return "", false, err
	}
	if id, ok := MatchDevice(devices, name); ok {
		return id, true, nil
	}
	return "", false, nil
}

// MatchDevice picks the first device with an id whose name contains name.
func MatchDevice(devices []Device, name string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d.ID, true
		}
	}
	return "", false
}

// WaitForDevice polls FindDevice until the device appears or the configured
// attempts are exhausted. Authorization failures return immediately; any other
// error from the final attempt is returned so callers can tell "not found"
// from "could not ask".
func (c *Client) WaitForDevice(ctx context.Context, name string) (string, bool, error) {
	attempts := c.attempts
	if attempts <= 0 {
		attempts = 1
	}
	logger := logging.WithContext(ctx, c.logger)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, found, err := c.FindDevice(ctx, name)
		switch {
		case err != nil && services.IsRunFatal(err):
			return "", false, err
		case err != nil:
			lastErr = err
			logger.Debug("device lookup failed", logging.Int("attempt", attempt), logging.Error(err))
		case found:
			logger.Debug("device found", logging.String("device_id", id), logging.Int("attempt", attempt))
			return id, true, nil
		default:
			lastErr = nil
			logger.Debug("device not listed yet", logging.String("device", name), logging.Int("attempt", attempt))
		}
		if attempt == attempts {
			break
		}
		if err := c.sleep(ctx, c.interval); err != nil {
			return "", false, err
		}
	}
	return "", false, lastErr
}

// StartPlayback tells deviceID to play uri. Any rejection other than an
// authorization failure returns false with a nil error.
func (c *Client) StartPlayback(ctx context.Context, deviceID, uri string) (bool, error) {
	payload, err := json.Marshal(map[string][]string{"uris": {uri}})
	if err != nil {
		return false, fmt.Errorf("encode play request: %w", err)
	}
	query := url.Values{}
	query.Set("device_id", deviceID)
	status, body, err := c.do(ctx, http.MethodPut, "/me/player/play", query, payload)
	if err != nil {
		if services.IsRunFatal(err) {
			return false, err
		}
		c.logger.Debug("play request failed", logging.Error(err))
		return false, nil
	}
	if status < 200 || status >= 300 {
		logging.WithContext(ctx, c.logger).Debug("play request rejected",
			logging.Int("status", status),
			logging.String("message", apiMessage(body)),
		)
		return false, nil
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrTransient, "spotify", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, data, services.Wrap(services.ErrRemoteAuth, "spotify", method+" "+path,
			"access token rejected: "+apiMessage(data), nil)
	}
	return resp.StatusCode, data, nil
}

func apiMessage(body []byte) string {
	var payload struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			if reason := strings.TrimSpace(payload.Error.Reason); reason != "" {
				return msg + " (" + reason + ")"
			}
			return msg
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
