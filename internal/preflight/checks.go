package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tracktap/internal/config"
	"tracktap/internal/deps"
	"tracktap/internal/pipe"
	"tracktap/internal/publish"
	"tracktap/internal/services"
	"tracktap/internal/spotify"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNamedPipe creates and removes a pipe the way a capture would.
func CheckNamedPipe(preferred string) Result {
	const name = "Named pipe"
	if !pipe.Supported() {
		return Result{Name: name, Detail: "named pipes unsupported: " + pipe.UnsupportedHint}
	}
	endpoint, err := pipe.Open(preferred)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	path := endpoint.Path()
	if err := endpoint.Close(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (cleanup failed: %v)", path, err)}
	}
	if preferred != "" {
		return Result{Name: name, Passed: true, Detail: path + " (fixed path)"}
	}
	return Result{Name: name, Passed: true, Detail: "temporary pipes ok"}
}

// CheckSystemDeps evaluates the encoder and sink binaries. The daemon
// start-up snapshot and the CLI status command share this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encoder.Binary,
			Description: "Encodes the captured PCM stream",
			VersionFlag: "-version",
		},
		{
			Name:        "librespot",
			Command:     cfg.Librespot.Binary,
			Description: "Plays the track into the named pipe",
			VersionFlag: "--version",
		},
	}
	results := deps.CheckBinaries(ctx, requirements)
	if results[0].Available {
		results = append(results, deps.CheckEncoderCodec(ctx, cfg.Encoder.Binary, cfg.Encoder.Codec))
	}
	return results
}

// DependencyResults converts CheckSystemDeps into report rows.
func DependencyResults(ctx context.Context, cfg *config.Config) []Result {
	statuses := CheckSystemDeps(ctx, cfg)
	results := make([]Result, 0, len(statuses))
	for _, dep := range statuses {
		results = append(results, Result{Name: dep.Name, Passed: dep.Available, Optional: dep.Optional, Detail: dep.Summary()})
	}
	return results
}

// CheckSpotify verifies credentials are present and, when they are, that a
// token can be obtained and the device list read.
func CheckSpotify(ctx context.Context, cfg *config.Config) Result {
	const name = "Spotify Web API"
	if !cfg.HasSpotifyCredentials() {
		return Result{Name: name, Optional: true, Detail: "no credentials (only manual captures can run)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := spotify.New(cfg, nil)
	devices, err := client.Devices(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	if _, found := spotify.MatchDevice(devices, cfg.Spotify.DeviceName); found {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authorized; device %q online", cfg.Spotify.DeviceName)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authorized; %d device(s), %q appears once librespot starts", len(devices), cfg.Spotify.DeviceName)}
}

// CheckNotifications reports whether ntfy delivery is configured.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: cfg.Notifications.NtfyTopic}
}

// CheckPublish verifies object storage is reachable when publishing is enabled.
func CheckPublish(ctx context.Context, cfg *config.Config) Result {
	const name = "Publish"
	if !cfg.Publish.Enabled {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	uploader, err := publish.New(cfg, nil)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := uploader.Check(checkCtx)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeRemoteError(err)}
	}
	if !exists {
		return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("bucket %q will be created on first upload", uploader.Bucket())}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("bucket %q reachable", uploader.Bucket())}
}

func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (endpoint unreachable)"
	}
	if errors.Is(err, services.ErrRemoteAuth) {
		return "authorization failed: " + err.Error()
	}
	return err.Error()
}
