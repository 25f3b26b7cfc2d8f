package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/panel"
	"tracktap/internal/playlist"
	"tracktap/internal/recorder"
	"tracktap/internal/recordings"
)

// PIDFileName is written to the state directory while the daemon runs.
const PIDFileName = "tracktapd.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Console receives log lines alongside the rotating file; nil means stdout.
	Console io.Writer
	// Ready, when set, is called with the panel address once it is listening.
	Ready func(addr string)
}

// Run starts the panel and serves captures until cmdCtx is cancelled or the
// process receives SIGINT or SIGTERM. Captures still running at shutdown are
// cancelled and waited for.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logOpts, err := logging.ConfigOptions(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logOpts.Level = level
	}
	logOpts.Console = opts.Console
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))

	logDependencySnapshot(logger, cfg)

	pidPath := PIDPath(cfg.Paths.StateDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	stack, err := recorder.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("build capture stack: %w", err)
	}
	defer stack.Close()

	var hist panel.History
	if stack.History != nil {
		hist = stack.History
	}
	srv := panel.New(cfg, stack.Service, recordings.NewLibrary(cfg.Paths.OutputDir), hist, logger)
	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	if opts.Ready != nil {
		opts.Ready(srv.Addr())
	}

	go watchCatalog(signalCtx, stack.Service.Catalog(), logger)

	<-signalCtx.Done()
	logger.Info("tracktap daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"),
		logging.Bool("capture_running", stack.Service.Tracker().Running()),
	)
	srv.Stop()
	stack.Service.Wait()
	return nil
}

func watchCatalog(ctx context.Context, catalog *playlist.Catalog, logger *slog.Logger) {
	err := catalog.Watch(ctx, logger, func() {
		entries, err := catalog.List()
		if err != nil {
			logging.WarnWithContext(logger, "playlist catalog unreadable", "playlist_catalog_unreadable",
				logging.Error(err),
				logging.String("dir", catalog.Dir()),
			)
			return
		}
		logger.Info("playlist catalog updated",
			logging.String(logging.FieldEventType, "playlist_catalog_updated"),
			logging.Int("playlists", len(entries)),
		)
	})
	if err != nil {
		logging.WarnWithContext(logger, "playlist watcher stopped", "playlist_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog changes are not logged until restart"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// PIDPath returns the PID file location inside stateDir.
func PIDPath(stateDir string) string {
	return filepath.Join(stateDir, PIDFileName)
}

// ReadPID returns the daemon PID recorded in stateDir, or 0 when none is
// recorded or the recorded process is gone.
func ReadPID(stateDir string) int {
	data, err := os.ReadFile(PIDPath(stateDir))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	if err := syscall.Kill(pid, 0); err != nil && !errors.Is(err, syscall.EPERM) {
		return 0
	}
	return pid
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("spotify_credentials_present", cfg.HasSpotifyCredentials()),
		logging.String("spotify_device", cfg.Spotify.DeviceName),
		logging.Bool("librespot_available", binaryAvailable(cfg.Librespot.Binary)),
		logging.String("librespot_binary", cfg.Librespot.Binary),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Encoder.Binary)),
		logging.String("ffmpeg_binary", cfg.Encoder.Binary),
		logging.String("encoder_codec", cfg.Encoder.Codec),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("publish_enabled", cfg.Publish.Enabled),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
