package recorder

import (
	"errors"
	"log/slog"

	"tracktap/internal/capture"
	"tracktap/internal/config"
	"tracktap/internal/history"
	"tracktap/internal/logging"
	"tracktap/internal/notifications"
	"tracktap/internal/pipe"
	"tracktap/internal/playlist"
	"tracktap/internal/process"
	"tracktap/internal/publish"
	"tracktap/internal/session"
	"tracktap/internal/spotify"
)

// Stack is a fully wired Service plus the resources it owns.
type Stack struct {
	Service *Service
	History *history.Store
}

// Close releases the resources opened by Build.
func (s *Stack) Close() error {
	if s == nil || s.History == nil {
		return nil
	}
	return s.History.Close()
}

// Build wires the capture pipeline from configuration: named pipe, process
// launcher, Spotify client, history journal, notifications, and publishing.
// An unavailable history database or publisher is logged and skipped.
func Build(cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if !cfg.HasSpotifyCredentials() {
		logging.WarnWithContext(logger, "spotify credentials missing", "remote_unauthorized",
			logging.String(logging.FieldErrorHint, "set spotify.refresh_token or SPOTIFY_ACCESS_TOKEN"),
			logging.String(logging.FieldImpact, "captures fail unless manual playback is requested"),
		)
	}
	remote := spotify.New(cfg, nil, spotify.WithLogger(logger))

	job := capture.NewJob(cfg, pipe.FIFO{}, process.NewLauncher(cfg, logger), remote, logger)

	stack := &Stack{}
	var opts []capture.RunnerOption
	if store, err := history.Open(cfg.HistoryPath()); err != nil {
		logging.WarnWithContext(logger, "history journal unavailable", "history_unavailable",
			logging.Error(err),
			logging.String("path", cfg.HistoryPath()),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or delete a stale history.db"),
			logging.String(logging.FieldImpact, "runs are not recorded in history"),
		)
	} else {
		stack.History = store
		opts = append(opts, capture.WithJournal(store))
	}

	opts = append(opts, capture.WithNotifier(notifications.NewNotifier(cfg, notifications.NewService(cfg), logger)))

	uploader, err := publish.New(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "publisher unavailable", "publish_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [publish] endpoint and credentials"),
			logging.String(logging.FieldImpact, "recordings stay local"),
		)
	} else if uploader != nil {
		opts = append(opts, capture.WithPublisher(uploader))
	}

	runner := capture.NewRunner(cfg, job, logger, opts...)
	stack.Service = New(cfg, runner, playlist.NewCatalog(cfg.Paths.PlaylistsDir), session.NewTracker(cfg.LockPath()), logger)
	return stack, nil
}
