package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tracktap/internal/config"
	"tracktap/internal/services"
)

const tokenRefreshLeeway = time.Minute

// TokenSource yields bearer tokens for Web API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed access token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", services.Wrap(services.ErrRemoteAuth, "spotify", "token", "access token is empty", nil)
	}
	return token, nil
}

// RefreshTokenSource exchanges a long-lived refresh token for short-lived
// access tokens and caches each until shortly before it expires.
type RefreshTokenSource struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	HTTP         HTTPDoer

	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Error        string `json:"error"`
	Description  string `json:"error_description"`
}

// Token implements TokenSource.
func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if s.token != "" && now().Add(tokenRefreshLeeway).Before(s.expires) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.RefreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "spotify", "refresh token", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.ClientID, s.ClientSecret)

	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "refresh token", "request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload tokenResponse
	_ = json.Unmarshal(body, &payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || payload.AccessToken == "" {
		detail := strings.TrimSpace(payload.Description)
		if detail == "" {
			detail = strings.TrimSpace(payload.Error)
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return "", services.Wrap(refreshFailureMarker(resp.StatusCode), "spotify", "refresh token",
			fmt.Sprintf("status %d: %s", resp.StatusCode, detail), nil)
	}

	s.token = payload.AccessToken
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	s.expires = now().Add(time.Duration(expiresIn) * time.Second)
	if rotated := strings.TrimSpace(payload.RefreshToken); rotated != "" {
		s.RefreshToken = rotated
	}
	return s.token, nil
}

// refreshFailureMarker separates rejected credentials (400 invalid_grant or
// invalid_client, 401, 403) from an accounts service that is overloaded or
// down, which may recover before the next track.
func refreshFailureMarker(status int) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return services.ErrTransient
	}
	return services.ErrRemoteAuth
}

type missingCredentials struct{}

func (missingCredentials) Token(context.Context) (string, error) {
	return "", services.Wrap(services.ErrRemoteAuth, "spotify", "token",
		"no credentials configured (set spotify.refresh_token with client_id/client_secret, or spotify.access_token)", nil)
}

// NewTokenSource picks the strongest credential available in cfg: a refresh
// token grant first, then a static access token. Without either, every call
// fails with services.ErrRemoteAuth.
func NewTokenSource(cfg config.Spotify, client HTTPDoer) TokenSource {
	if cfg.RefreshToken != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		return &RefreshTokenSource{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: cfg.RefreshToken,
			TokenURL:     cfg.AccountsURL,
			HTTP:         client,
		}
	}
	if cfg.AccessToken != "" {
		return StaticToken(cfg.AccessToken)
	}
	return missingCredentials{}
}
