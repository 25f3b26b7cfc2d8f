package capture

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/playlist"
	"tracktap/internal/services"
	"tracktap/internal/textutil"
)

// Journal persists run and per-track results.
type Journal interface {
	RunStarted(ctx context.Context, info RunInfo) error
	TrackFinished(ctx context.Context, runID string, outcome Outcome) error
	RunFinished(ctx context.Context, report Report, runErr error) error
}

// Publisher copies a completed recording somewhere else.
type Publisher interface {
	Publish(ctx context.Context, playlistTitle, path string) error
}

// Notifier announces run lifecycle events.
type Notifier interface {
	RunStarted(ctx context.Context, info RunInfo)
	RunFinished(ctx context.Context, report Report)
	RunFailed(ctx context.Context, info RunInfo, err error)
}

// RunInfo identifies a run before it has results.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	OutputDir string    `json:"output_dir"`
	Total     int       `json:"total"`
	Manual    bool      `json:"manual"`
	Started   time.Time `json:"started"`
}

// RunRequest describes a playlist capture.
type RunRequest struct {
	Title        string
	Tracks       []playlist.Track
	OutputDir    string
	SkipExisting bool
	Manual       bool
	// Observer receives progress; nil selects a ConsoleObserver on stdout.
	Observer Observer
	// RunID is generated when empty.
	RunID string
}

// Counts tallies outcomes by status.
type Counts struct {
	OK      int `json:"ok"`
	Skipped int `json:"skipped"`
	Error   int `json:"error"`
}

// Report is the ordered result of a run.
type Report struct {
	RunInfo
	Outcomes []Outcome `json:"outcomes"`
	Finished time.Time `json:"finished"`
	Error    string    `json:"error,omitempty"`
}

// Counts tallies the report's outcomes.
func (r Report) Counts() Counts {
	var c Counts
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusOK:
			c.OK++
		case StatusSkipped:
			c.Skipped++
		case StatusError:
			c.Error++
		}
	}
	return c
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithJournal records every run in j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// WithPublisher uploads each completed recording through p.
func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithNotifier announces run lifecycle events through n.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// Runner captures playlists track by track.
type Runner struct {
	job       Capturer
	journal   Journal
	publisher Publisher
	notifier  Notifier
	extension string
	maxName   int
	logger    *slog.Logger
}

// NewRunner builds a Runner around job.
func NewRunner(cfg *config.Config, job Capturer, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		job:       job,
		extension: "mp3",
		maxName:   textutil.DefaultFileNameLength,
		logger:    logging.NewComponentLogger(logger, "runner"),
	}
	if cfg != nil {
		if ext := strings.TrimSpace(cfg.Encoder.Extension); ext != "" {
			r.extension = ext
		}
		if cfg.Capture.FileNameMaxLength > 0 {
			r.maxName = cfg.Capture.FileNameMaxLength
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputPath derives the file a track is recorded to inside dir.
func (r *Runner) OutputPath(dir string, track playlist.Track) string {
	return filepath.Join(dir, textutil.TrackFileName(track.Artists, track.Title, r.extension, r.maxName))
}

// PlaylistDir is the per-playlist output directory under root.
func PlaylistDir(root, title string) string {
	return filepath.Join(root, textutil.DirName(title))
}

// Run captures every track in order. Per-track failures are recorded and the
// run continues; run-fatal errors and context cancellation stop the loop and
// are returned together with the outcomes gathered so far.
func (r *Runner) Run(ctx context.Context, req RunRequest) (Report, error) {
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	observer := req.Observer
	if observer == nil {
		observer = NewConsoleObserver(os.Stdout)
	}
	total := len(req.Tracks)
	report := Report{
		RunInfo: RunInfo{
			RunID:     runID,
			Title:     req.Title,
			OutputDir: req.OutputDir,
			Total:     total,
			Manual:    req.Manual,
			Started:   time.Now(),
		},
		Outcomes: make([]Outcome, 0, total),
	}

	if strings.TrimSpace(req.OutputDir) == "" {
		err := services.Wrap(services.ErrValidation, "runner", "run", "output directory is required", nil)
		return r.finish(ctx, report, err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return r.finish(ctx, report, services.Wrap(services.ErrResource, "runner", "run", "create output directory", err))
	}

	logger.Info("capture run started",
		logging.String("title", req.Title),
		logging.Int("tracks", total),
		logging.String("output_dir", req.OutputDir),
		logging.Bool("skip_existing", req.SkipExisting),
		logging.Bool("manual", req.Manual),
		logging.String(logging.FieldEventType, "run_started"),
	)
	if r.journal != nil {
		if err := r.journal.RunStarted(ctx, report.RunInfo); err != nil {
			r.journalWarning(logger, err)
		}
	}
	if r.notifier != nil {
		r.notifier.RunStarted(ctx, report.RunInfo)
	}

	for i, track := range req.Tracks {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, report, err)
		}
		index := i + 1
		trackCtx := services.WithTrackIndex(ctx, index)
		outputPath := r.OutputPath(req.OutputDir, track)

		if req.SkipExisting && fileExists(outputPath) {
			outcome := Outcome{
				Index:      index,
				Track:      track,
				OutputPath: outputPath,
				Status:     StatusSkipped,
				Started:    time.Now(),
				Finished:   time.Now(),
			}
			r.record(trackCtx, &report, outcome)
			observer.OnProgress(index, total, track, StatusSkipped)
			notifyOutcome(observer, total, outcome)
			continue
		}

		observer.OnProgress(index, total, track, StatusRecording)
		outcome, err := r.job.Run(trackCtx, Request{Track: track, OutputPath: outputPath, Manual: req.Manual})
		outcome.Index = index
		outcome.Track = track
		if outcome.OutputPath == "" {
			outcome.OutputPath = outputPath
		}
		if err != nil && outcome.Status != StatusError {
			outcome.Status = StatusError
			if outcome.Diagnostic == "" {
				outcome.Diagnostic = err.Error()
			}
		}
		r.record(trackCtx, &report, outcome)
		observer.OnProgress(index, total, track, outcome.Status)
		notifyOutcome(observer, total, outcome)

		if err != nil {
			if services.IsRunFatal(err) {
				return r.finish(ctx, report, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.finish(ctx, report, ctxErr)
			}
		}
		if outcome.Status == StatusOK && r.publisher != nil {
			if pubErr := r.publisher.Publish(trackCtx, req.Title, outcome.OutputPath); pubErr != nil {
				logging.WarnWithContext(logger, "publish failed", "publish_failed",
					logging.Error(pubErr),
					logging.String("path", outcome.OutputPath),
					logging.String(logging.FieldErrorHint, "check publish endpoint and credentials"),
					logging.String(logging.FieldImpact, "recording kept locally only"),
				)
			}
		}
	}
	return r.finish(ctx, report, nil)
}

func (r *Runner) record(ctx context.Context, report *Report, outcome Outcome) {
	report.Outcomes = append(report.Outcomes, outcome)
	if r.journal == nil {
		return
	}
	if err := r.journal.TrackFinished(context.WithoutCancel(ctx), report.RunID, outcome); err != nil {
		r.journalWarning(logging.WithContext(ctx, r.logger), err)
	}
}

func (r *Runner) finish(ctx context.Context, report Report, runErr error) (Report, error) {
	report.Finished = time.Now()
	logger := logging.WithContext(ctx, r.logger)
	counts := report.Counts()
	if runErr != nil {
		report.Error = runErr.Error()
		hint := "inspect the error and retry the run"
		switch {
		case errors.Is(runErr, services.ErrRemoteAuth):
			hint = "refresh the Spotify credentials and retry"
		case errors.Is(runErr, services.ErrResource):
			hint = "use an environment where named pipes are supported"
		case errors.Is(runErr, context.Canceled):
			hint = "run was cancelled; re-run with skip-existing to resume"
		}
		logging.ErrorWithContext(logger, "capture run stopped", "run_failed",
			logging.Error(runErr),
			logging.String("error_kind", services.Kind(runErr)),
			logging.String(logging.FieldErrorHint, hint),
			logging.Int("ok", counts.OK),
			logging.Int("skipped", counts.Skipped),
			logging.Int("failed", counts.Error),
		)
		if r.notifier != nil {
			r.notifier.RunFailed(context.WithoutCancel(ctx), report.RunInfo, runErr)
		}
	} else {
		logger.Info("capture run finished",
			logging.Int("ok", counts.OK),
			logging.Int("skipped", counts.Skipped),
			logging.Int("failed", counts.Error),
			logging.Duration("elapsed", report.Finished.Sub(report.Started)),
			logging.String(logging.FieldEventType, "run_finished"),
		)
		if r.notifier != nil {
			r.notifier.RunFinished(ctx, report)
		}
	}
	if r.journal != nil {
		if err := r.journal.RunFinished(context.WithoutCancel(ctx), report, runErr); err != nil {
			r.journalWarning(logger, err)
		}
	}
	return report, runErr
}

func (r *Runner) journalWarning(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "history journal write failed", "journal_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
		logging.String(logging.FieldImpact, "run continues without history"),
	)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
