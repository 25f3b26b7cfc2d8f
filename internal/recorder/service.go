package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tracktap/internal/capture"
	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/playlist"
	"tracktap/internal/services"
	"tracktap/internal/session"
)

// PlaylistRequest starts a playlist capture. Either Ref (catalog name or
// file path) or Playlist must be set.
type PlaylistRequest struct {
	Ref          string             `json:"playlist"`
	Playlist     *playlist.Playlist `json:"-"`
	OutputDir    string             `json:"output_dir,omitempty"`
	SkipExisting *bool              `json:"skip_existing,omitempty"`
	Manual       bool               `json:"manual,omitempty"`
}

// TrackRequest captures a single track. The track comes either from a saved
// playlist (PlaylistRef plus 1-based Index) or from Track directly.
type TrackRequest struct {
	PlaylistRef string         `json:"playlist,omitempty"`
	Index       int            `json:"index,omitempty"`
	Track       playlist.Track `json:"track"`
	OutputDir   string         `json:"output_dir,omitempty"`
	Manual      bool           `json:"manual,omitempty"`
}

// Service coordinates captures for one process.
type Service struct {
	cfg     *config.Config
	runner  *capture.Runner
	catalog *playlist.Catalog
	tracker *session.Tracker
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New builds a Service.
func New(cfg *config.Config, runner *capture.Runner, catalog *playlist.Catalog, tracker *session.Tracker, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		runner:  runner,
		catalog: catalog,
		tracker: tracker,
		logger:  logging.NewComponentLogger(logger, "recorder"),
	}
}

// Tracker exposes the session tracker for status surfaces.
func (s *Service) Tracker() *session.Tracker {
	return s.tracker
}

// Catalog exposes the playlist catalog.
func (s *Service) Catalog() *playlist.Catalog {
	return s.catalog
}

// prepared is a claimed session plus the runner request it will execute.
type prepared struct {
	run *session.Run
	req capture.RunRequest
}

// RecordPlaylist captures a playlist and blocks until it ends. observer
// receives progress in addition to the session tracker.
func (s *Service) RecordPlaylist(ctx context.Context, req PlaylistRequest, observer capture.Observer) (capture.Report, error) {
	p, err := s.preparePlaylist(req, observer)
	if err != nil {
		return capture.Report{}, err
	}
	return s.execute(ctx, p)
}

// RecordTrack captures one track and blocks until it ends.
func (s *Service) RecordTrack(ctx context.Context, req TrackRequest, observer capture.Observer) (capture.Report, error) {
	p, err := s.prepareTrack(req, observer)
	if err != nil {
		return capture.Report{}, err
	}
	return s.execute(ctx, p)
}

// StartPlaylist claims the session and captures in the background. It
// returns the run ID, or services.ErrBusy when a capture is already active.
func (s *Service) StartPlaylist(ctx context.Context, req PlaylistRequest) (string, error) {
	p, err := s.preparePlaylist(req, nil)
	if err != nil {
		return "", err
	}
	s.background(ctx, p)
	return p.req.RunID, nil
}

// StartTrack is the single-track counterpart of StartPlaylist.
func (s *Service) StartTrack(ctx context.Context, req TrackRequest) (string, error) {
	p, err := s.prepareTrack(req, nil)
	if err != nil {
		return "", err
	}
	s.background(ctx, p)
	return p.req.RunID, nil
}

// Wait blocks until background captures have returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) background(ctx context.Context, p prepared) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(s.logger, "background capture ended with error", "background_capture_failed",
				logging.String(logging.FieldRunID, p.req.RunID),
				logging.Error(err),
			)
		}
	}()
}

func (s *Service) preparePlaylist(req PlaylistRequest, observer capture.Observer) (prepared, error) {
	pl := req.Playlist
	if pl == nil {
		ref := strings.TrimSpace(req.Ref)
		if ref == "" {
			return prepared{}, services.Wrap(services.ErrValidation, "recorder", "record playlist", "playlist reference is required", nil)
		}
		loaded, _, err := s.catalog.Load(ref)
		if err != nil {
			return prepared{}, err
		}
		pl = loaded
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = capture.PlaylistDir(s.outputRoot(), pl.Title)
	}
	skip := s.cfg == nil || s.cfg.Capture.SkipExisting
	if req.SkipExisting != nil {
		skip = *req.SkipExisting
	}
	return s.claim(session.KindPlaylist, capture.RunRequest{
		Title:        pl.Title,
		Tracks:       append([]playlist.Track(nil), pl.Tracks...),
		OutputDir:    outputDir,
		SkipExisting: skip,
		Manual:       req.Manual,
	}, observer)
}

func (s *Service) prepareTrack(req TrackRequest, observer capture.Observer) (prepared, error) {
	track := req.Track
	outputDir := strings.TrimSpace(req.OutputDir)
	title := ""

	if ref := strings.TrimSpace(req.PlaylistRef); ref != "" {
		pl, _, err := s.catalog.Load(ref)
		if err != nil {
			return prepared{}, err
		}
		t, ok := pl.Track(req.Index - 1)
		if !ok {
			return prepared{}, services.Wrap(services.ErrValidation, "recorder", "record track",
				fmt.Sprintf("index %d out of range 1..%d", req.Index, len(pl.Tracks)), nil)
		}
		track = t
		title = pl.Title
		if outputDir == "" {
			outputDir = capture.PlaylistDir(s.outputRoot(), pl.Title)
		}
	}
	if strings.TrimSpace(track.Title) == "" {
		return prepared{}, services.Wrap(services.ErrValidation, "recorder", "record track", "track title is required", nil)
	}
	if outputDir == "" {
		outputDir = s.outputRoot()
	}
	if title == "" {
		title = track.Label()
	}
	return s.claim(session.KindTrack, capture.RunRequest{
		Title:     title,
		Tracks:    []playlist.Track{track},
		OutputDir: outputDir,
		Manual:    req.Manual,
	}, observer)
}

func (s *Service) claim(kind session.Kind, req capture.RunRequest, observer capture.Observer) (prepared, error) {
	if req.OutputDir == "" {
		return prepared{}, services.Wrap(services.ErrConfiguration, "recorder", "prepare", "output directory is not configured", nil)
	}
	run, err := s.tracker.Begin(kind, req.Title, len(req.Tracks))
	if err != nil {
		return prepared{}, err
	}
	req.RunID = uuid.NewString()
	run.SetRunID(req.RunID)
	observers := capture.Observers{run}
	if observer != nil {
		observers = append(observers, observer)
	}
	req.Observer = observers
	return prepared{run: run, req: req}, nil
}

func (s *Service) execute(ctx context.Context, p prepared) (capture.Report, error) {
	report, err := s.runner.Run(ctx, p.req)
	if err != nil {
		p.run.Fail(err)
		return report, err
	}
	p.run.Finish()
	return report, nil
}

func (s *Service) outputRoot() string {
	if s.cfg == nil || strings.TrimSpace(s.cfg.Paths.OutputDir) == "" {
		return ""
	}
	return filepath.Clean(s.cfg.Paths.OutputDir)
}
