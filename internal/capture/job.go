package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/pipe"
	"tracktap/internal/playlist"
	"tracktap/internal/process"
	"tracktap/internal/services"
)

// Remote is the playback control the job needs from the Web API client.
type Remote interface {
	WaitForDevice(ctx context.Context, name string) (string, bool, error)
	StartPlayback(ctx context.Context, deviceID, uri string) (bool, error)
}

// Authorizer is implemented by remotes that can confirm their credentials
// without side effects. The job asks before it opens the pipe so a run with
// unusable credentials starts no process.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// SleepFunc pauses for d unless ctx ends first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Capturer records one track. Job is the production implementation.
type Capturer interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

// Request describes one capture.
type Request struct {
	Track      playlist.Track
	OutputPath string
	// Manual skips device discovery and the play command entirely.
	Manual     bool
}

// Outcome is the result of one track. It is produced for every track,
// including failures.
type Outcome struct {
	Index      int            `json:"index"`
	Track      playlist.Track `json:"track"`
	OutputPath string         `json:"output_path,omitempty"`
	Status     Status         `json:"status"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Fallback   Fallback       `json:"fallback,omitempty"`
	Killed     bool           `json:"killed,omitempty"`
	Bytes      int64          `json:"bytes,omitempty"`
	States     []State        `json:"states,omitempty"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
}

// Final returns the last state reached.
func (o Outcome) Final() State {
	if len(o.States) == 0 {
		return StateIdle
	}
	return o.States[len(o.States)-1]
}

// Reached reports whether the job passed through s.
func (o Outcome) Reached(s State) bool {
	for _, state := range o.States {
		if state == s {
			return true
		}
	}
	return false
}

// JobOption customises a Job.
type JobOption func(*Job)

// WithSleep replaces the settle pause (tests pass a no-op).
func WithSleep(sleep SleepFunc) JobOption {
	return func(j *Job) {
		j.sleep = sleep
	}
}

// WithTiming overrides the timing policy.
func WithTiming(t Timing) JobOption {
	return func(j *Job) {
		j.timing = t
	}
}

// WithPipePath sets the fixed pipe path; empty synthesizes one per job.
func WithPipePath(path string) JobOption {
	return func(j *Job) {
		j.pipePath = path
	}
}

// Job composes the pipe, process pair, and remote client into one capture.
type Job struct {
	pipes      pipe.Provider
	launcher   process.Starter
	remote     Remote
	deviceName string
	pipePath   string
	timing     Timing
	diagLines  int
	sleep      SleepFunc
	logger     *slog.Logger
}

// NewJob wires a Job from config. A nil remote is only usable for manual
// requests; any other request fails with services.ErrRemoteAuth.
func NewJob(cfg *config.Config, pipes pipe.Provider, launcher process.Starter, remote Remote, logger *slog.Logger, opts ...JobOption) *Job {
	j := &Job{
		pipes:     pipes,
		launcher:  launcher,
		remote:    remote,
		timing:    TimingFromConfig(cfg),
		diagLines: process.DefaultTailLines,
		sleep:     sleepContext,
		logger:    logging.NewComponentLogger(logger, "capture"),
	}
	if cfg != nil {
		j.deviceName = cfg.Spotify.DeviceName
		j.pipePath = cfg.Paths.PipePath
		if cfg.Capture.DiagnosticLines > 0 {
			j.diagLines = cfg.Capture.DiagnosticLines
		}
	}
	if j.pipes == nil {
		j.pipes = pipe.FIFO{}
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.sleep == nil {
		j.sleep = sleepContext
	}
	return j
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

type jobRun struct {
	logger  *slog.Logger
	outcome Outcome
}

func (r *jobRun) enter(state State, eventType string, attrs ...logging.Attr) {
	r.outcome.States = append(r.outcome.States, state)
	if eventType == "" {
		r.logger.Debug("capture state", logging.String("state", string(state)))
		return
	}
	attrs = append(attrs,
		logging.String("state", string(state)),
		logging.String(logging.FieldEventType, eventType),
	)
	r.logger.Info(stateMessage(state), logging.Args(attrs...)...)
}

func (r *jobRun) fail(err error, diagnostic string) (Outcome, error) {
	r.outcome.States = append(r.outcome.States, StateFailed)
	r.outcome.Status = StatusError
	if diagnostic == "" && err != nil {
		diagnostic = err.Error()
	}
	r.outcome.Diagnostic = diagnostic
	r.outcome.Finished = time.Now()
	hint := "check the diagnostic tails for encoder and sink errors"
	switch {
	case errors.Is(err, services.ErrResource):
		hint = pipe.UnsupportedHint
	case errors.Is(err, services.ErrRemoteAuth):
		hint = "refresh the Spotify credentials and retry"
	}
	logging.ErrorWithContext(r.logger, "capture failed", "capture_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.String("diagnostic", diagnostic),
	)
	return r.outcome, err
}

// Run captures one track. The returned Outcome is always populated; the error
// is non-nil exactly when Status is StatusError and carries a services marker.
// All subprocesses have exited and any synthesized pipe is removed by the time
// Run returns.
func (j *Job) Run(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, j.logger).With(
		logging.String(logging.FieldTrackURI, req.Track.URI),
		logging.String("track", req.Track.Label()),
	)
	outcome := Outcome{
		Track:      req.Track,
		OutputPath: req.OutputPath,
		Started:    time.Now(),
		States:     []State{StateIdle},
	}
	r := &jobRun{logger: logger, outcome: outcome}
	if strings.TrimSpace(req.OutputPath) == "" {
		return r.fail(services.Wrap(services.ErrValidation, "capture", "run", "output path is required", nil), "")
	}

	if err := j.authorize(ctx, logger, req); err != nil {
		return r.fail(err, "")
	}

	endpoint, err := j.pipes.Open(j.pipePath)
	if err != nil {
		if !errors.Is(err, services.ErrResource) {
			err = services.Wrap(services.ErrResource, "capture", "open pipe", "", err)
		}
		return r.fail(err, "")
	}
	defer func() {
		if closeErr := endpoint.Close(); closeErr != nil {
			logger.Warn("pipe cleanup failed",
				logging.Error(closeErr),
				logging.String(logging.FieldEventType, "pipe_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the temporary FIFO manually"),
			)
		}
	}()
	r.enter(StatePipesReady, "pipe_ready", logging.String("pipe_path", endpoint.Path()))

	// ffmpeg only truncates its output once the FIFO delivers data, so a
	// stale file would survive a capture that never received audio.
	if err := os.Remove(req.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return r.fail(services.Wrap(services.ErrProcess, "capture", "remove previous output", req.OutputPath, err), "")
	}

	window := j.timing.Window(req.Track)
	ceiling := j.timing.Ceiling(req.Track)
	handle, err := j.launcher.Start(ctx, process.Target{PipePath: endpoint.Path(), OutputPath: req.OutputPath}, window)
	if err != nil {
		if !errors.Is(err, services.ErrProcess) {
			err = services.Wrap(services.ErrProcess, "capture", "start processes", "", err)
		}
		return r.fail(err, "")
	}
	defer handle.Close()
	r.enter(StateProcessesStarted, "processes_started",
		logging.Duration("window", window),
		logging.Duration("ceiling", ceiling),
		logging.String("output", req.OutputPath),
	)

	fallback, err := j.trigger(ctx, logger, req)
	if err != nil {
		_ = handle.Close()
		return r.fail(err, "")
	}
	r.outcome.Fallback = fallback
	if fallback.Manual() {
		r.enter(StateManualFallback, "")
		logging.WarnWithContext(logger, "manual playback required", "manual_fallback",
			logging.String("fallback", string(fallback)),
			logging.String("device", j.deviceName),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("select device %q in Spotify and start the track within %s", j.deviceName, window)),
			logging.String(logging.FieldImpact, "recording proceeds without an automatic play command"),
		)
	} else {
		r.enter(StatePlaybackTriggered, "playback_triggered")
	}

	r.enter(StateCapturing, "")
	result, err := handle.Wait(ctx, ceiling)
	if err != nil {
		return r.fail(services.Wrap(services.ErrProcess, "capture", "wait for encoder", "", err), "")
	}
	r.outcome.Killed = result.Killed
	r.enter(StateFinalizing, "")

	if result.SinkExited {
		// A truncated file must not satisfy skip-existing on the next run.
		if err := os.Remove(req.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("partial output not removed", logging.Error(err))
		}
		detail := "playback sink exited before the capture window ended"
		text := detail
		if diag := handle.Diagnostics(j.diagLines); !diag.Empty() {
			text = detail + "\n" + diag.String()
		}
		return r.fail(services.Wrap(services.ErrProcess, "capture", "finalize", detail, nil), text)
	}

	info, statErr := os.Stat(req.OutputPath)
	if statErr != nil || info.Size() == 0 {
		diag := handle.Diagnostics(j.diagLines)
		detail := "output file missing"
		if statErr == nil {
			detail = "output file is empty"
		}
		text := detail
		if !diag.Empty() {
			text = detail + "\n" + diag.String()
		} else if result.ExitCode != 0 {
			text = fmt.Sprintf("%s (encoder exit code %d)", detail, result.ExitCode)
		}
		return r.fail(services.Wrap(services.ErrProcess, "capture", "finalize", detail, statErr), text)
	}

	r.outcome.Bytes = info.Size()
	r.outcome.Status = StatusOK
	r.outcome.Finished = time.Now()
	r.enter(StateCompleted, "capture_finished",
		logging.Int64("bytes", info.Size()),
		logging.Bool("killed", result.Killed),
		logging.Duration("elapsed", result.Elapsed),
	)
	return r.outcome, nil
}

// authorize fails fast when automatic playback is wanted but the remote cannot
// be used at all. Transient problems are left to trigger, which degrades them
// to a manual fallback.
func (j *Job) authorize(ctx context.Context, logger *slog.Logger, req Request) error {
	if req.Manual {
		return nil
	}
	if j.remote == nil {
		return services.Wrap(services.ErrRemoteAuth, "capture", "authorize",
			"no Spotify client configured; set credentials or request manual mode", nil)
	}
	auth, ok := j.remote.(Authorizer)
	if !ok {
		return nil
	}
	err := auth.Authorize(ctx)
	if err == nil || services.IsRunFatal(err) {
		return err
	}
	logger.Debug("credential check inconclusive", logging.Error(err))
	return nil
}

// trigger decides between automatic and manual playback. Only run-fatal
// errors are returned; every other problem selects a fallback.
func (j *Job) trigger(ctx context.Context, logger *slog.Logger, req Request) (Fallback, error) {
	if req.Manual {
		return FallbackRequested, nil
	}
	if err := j.sleep(ctx, j.timing.Settle); err != nil {
		return FallbackNone, services.Wrap(services.ErrProcess, "capture", "settle", "", err)
	}
	if strings.TrimSpace(req.Track.URI) == "" {
		return FallbackMissingURI, nil
	}

	deviceID, found, err := j.remote.WaitForDevice(ctx, j.deviceName)
	switch {
	case err != nil && services.IsRunFatal(err):
		return FallbackNone, err
	case err != nil:
		logger.Debug("device discovery failed", logging.Error(err))
		return FallbackRemoteError, nil
	case !found:
		return FallbackDeviceNotFound, nil
	}

	ok, err := j.remote.StartPlayback(ctx, deviceID, req.Track.URI)
	switch {
	case err != nil && services.IsRunFatal(err):
		return FallbackNone, err
	case err != nil:
		logger.Debug("play command failed", logging.Error(err))
		return FallbackRemoteError, nil
	case !ok:
		return FallbackRejected, nil
	}
	return FallbackNone, nil
}

func stateMessage(state State) string {
	switch state {
	case StatePipesReady:
		return "pipe ready"
	case StateProcessesStarted:
		return "encoder and sink started"
	case StatePlaybackTriggered:
		return "playback triggered"
	case StateCompleted:
		return "capture finished"
	default:
		return string(state)
	}
}
