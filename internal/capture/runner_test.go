package capture_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tracktap/internal/capture"
	"tracktap/internal/logging"
	"tracktap/internal/playlist"
	"tracktap/internal/services"
	"tracktap/internal/testsupport"
)

type progressEvent struct {
	index, total int
	title        string
	status       capture.Status
}

type progressLog struct {
	mu     sync.Mutex
	events []progressEvent
}

func (p *progressLog) OnProgress(index, total int, track playlist.Track, status capture.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, progressEvent{index, total, track.Title, status})
}

type recordingJournal struct {
	started  []capture.RunInfo
	tracks   []capture.Outcome
	finished []capture.Report
	runErrs  []error
}

func (j *recordingJournal) RunStarted(_ context.Context, info capture.RunInfo) error {
	j.started = append(j.started, info)
	return nil
}

func (j *recordingJournal) TrackFinished(_ context.Context, _ string, outcome capture.Outcome) error {
	j.tracks = append(j.tracks, outcome)
	return nil
}

func (j *recordingJournal) RunFinished(_ context.Context, report capture.Report, runErr error) error {
	j.finished = append(j.finished, report)
	j.runErrs = append(j.runErrs, runErr)
	return nil
}

type recordingPublisher struct {
	paths []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, path string) error {
	p.paths = append(p.paths, path)
	return p.err
}

type recordingNotifier struct {
	started, finished, failed int
	lastErr                   error
}

func (n *recordingNotifier) RunStarted(context.Context, capture.RunInfo) { n.started++ }
func (n *recordingNotifier) RunFinished(context.Context, capture.Report) { n.finished++ }
func (n *recordingNotifier) RunFailed(_ context.Context, _ capture.RunInfo, err error) {
	n.failed++
	n.lastErr = err
}

type outcomeLog struct {
	progressLog
	outcomes []capture.Outcome
}

func (o *outcomeLog) OnOutcome(_ int, outcome capture.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func threeTracks() []playlist.Track {
	return []playlist.Track{
		{Title: "Song", Artists: []string{"A"}, DurationMS: 185000, URI: "x:1"},
		{Title: "Two/Parts", Artists: []string{"B"}, DurationMS: 1000, URI: "x:2"},
		{Title: "Third", Artists: []string{"C", "D"}, DurationMS: 2000, URI: "x:3"},
	}
}

func newRunnerFixture(t *testing.T, opts ...capture.RunnerOption) (*capture.Runner, *jobFixture) {
	t.Helper()
	f := newJobFixture(t, okRemote())
	cfg := testsupport.NewConfig(t)
	return capture.NewRunner(cfg, f.job, logging.NewNop(), opts...), f
}

func TestRunnerScenarioFileName(t *testing.T) {
	runner, f := newRunnerFixture(t)
	progress := &progressLog{}

	report, err := runner.Run(context.Background(), capture.RunRequest{
		Title:     "Mix",
		Tracks:    []playlist.Track{songTrack},
		OutputDir: f.outDir,
		Observer:  progress,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("outcomes = %+v", report.Outcomes)
	}
	outcome := report.Outcomes[0]
	if outcome.Status != capture.StatusOK || !strings.HasSuffix(outcome.OutputPath, "A - Song.mp3") {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if filepath.Dir(outcome.OutputPath) != f.outDir {
		t.Fatalf("output must land in %s, got %s", f.outDir, outcome.OutputPath)
	}
	if f.launcher.windows[0].Seconds() != 188 {
		t.Fatalf("encoder window = %v", f.launcher.windows[0])
	}
	want := []capture.Status{capture.StatusRecording, capture.StatusOK}
	if len(progress.events) != 2 || progress.events[0].status != want[0] || progress.events[1].status != want[1] {
		t.Fatalf("progress = %+v", progress.events)
	}
	if progress.events[0].index != 1 || progress.events[0].total != 1 {
		t.Fatalf("progress index/total = %+v", progress.events[0])
	}
	if report.RunID == "" {
		t.Fatal("expected generated run id")
	}
}

func TestRunnerSkipExistingIsIdempotent(t *testing.T) {
	runner, f := newRunnerFixture(t)
	req := capture.RunRequest{
		Title:        "Mix",
		Tracks:       threeTracks(),
		OutputDir:    f.outDir,
		SkipExisting: true,
		Observer:     &progressLog{},
	}

	first, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if c := first.Counts(); c.OK != 3 {
		t.Fatalf("first run counts = %+v", c)
	}
	startsAfterFirst := f.launcher.startCount()

	second, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if f.launcher.startCount() != startsAfterFirst {
		t.Fatalf("second run started %d encoders", f.launcher.startCount()-startsAfterFirst)
	}
	for _, o := range second.Outcomes {
		if o.Status != capture.StatusSkipped {
			t.Fatalf("expected all skipped, got %+v", second.Outcomes)
		}
	}
	if c := second.Counts(); c.Skipped != 3 {
		t.Fatalf("second run counts = %+v", c)
	}
}

func TestRunnerWithoutSkipRecapturesExisting(t *testing.T) {
	runner, f := newRunnerFixture(t)
	tracks := threeTracks()[:1]
	testsupport.WriteFile(t, runner.OutputPath(f.outDir, tracks[0]), 10)

	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: tracks, OutputDir: f.outDir, Observer: &progressLog{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes[0].Status != capture.StatusOK || f.launcher.startCount() != 1 {
		t.Fatalf("expected fresh capture, got %+v", report.Outcomes)
	}
}

func TestRunnerPreservesOrderAndSanitizesNames(t *testing.T) {
	runner, f := newRunnerFixture(t)
	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: &progressLog{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantNames := []string{"A - Song.mp3", "B - Two-Parts.mp3", "C_D - Third.mp3"}
	for i, o := range report.Outcomes {
		if o.Index != i+1 {
			t.Fatalf("outcome %d has index %d", i, o.Index)
		}
		if filepath.Base(o.OutputPath) != wantNames[i] {
			t.Fatalf("outcome %d path %q, want %q", i, filepath.Base(o.OutputPath), wantNames[i])
		}
		if filepath.Base(f.launcher.targets[i].OutputPath) != wantNames[i] {
			t.Fatalf("launch %d target %q", i, f.launcher.targets[i].OutputPath)
		}
	}
}

func TestRunnerContinuesAfterPerTrackFailure(t *testing.T) {
	runner, f := newRunnerFixture(t)
	calls := 0
	f.launcher.waitHook = func() {
		calls++
		if calls == 2 {
			f.launcher.handles[1].payload = ""
		}
	}

	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: &progressLog{}})
	if err != nil {
		t.Fatalf("per-track failure must not stop the run: %v", err)
	}
	c := report.Counts()
	if c.OK != 2 || c.Error != 1 || report.Outcomes[1].Status != capture.StatusError {
		t.Fatalf("counts = %+v outcomes = %+v", c, report.Outcomes)
	}
	if report.Outcomes[1].Diagnostic == "" {
		t.Fatal("failed outcome needs a diagnostic")
	}
}

func TestRunnerStopsOnResourceError(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, f := newRunnerFixture(t, capture.WithNotifier(notifier))
	f.pipes.err = errUnsupported

	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: &progressLog{}})
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Status != capture.StatusError {
		t.Fatalf("expected a single failed outcome, got %+v", report.Outcomes)
	}
	if f.launcher.startCount() != 0 {
		t.Fatal("no subprocess may start")
	}
	if notifier.failed != 1 || !errors.Is(notifier.lastErr, services.ErrResource) {
		t.Fatalf("notifier failed=%d err=%v", notifier.failed, notifier.lastErr)
	}
}

func TestRunnerStopsOnRemoteAuthError(t *testing.T) {
	runner, f := newRunnerFixture(t)
	f.remote.findErr = errAuth

	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: &progressLog{}})
	if !errors.Is(err, services.ErrRemoteAuth) {
		t.Fatalf("expected ErrRemoteAuth, got %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("run must stop after the first track, got %d outcomes", len(report.Outcomes))
	}
	if report.Error == "" {
		t.Fatal("report should carry the run error")
	}
}

func TestRunnerRejectedCredentialsStopBeforeCapture(t *testing.T) {
	runner, f := newRunnerFixture(t)
	f.remote.authErr = errAuth

	report, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: &progressLog{}})
	if !errors.Is(err, services.ErrRemoteAuth) {
		t.Fatalf("expected ErrRemoteAuth, got %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Status != capture.StatusError {
		t.Fatalf("expected a single failed outcome, got %+v", report.Outcomes)
	}
	if f.launcher.startCount() != 0 || f.pipes.opens != 0 {
		t.Fatalf("nothing may start: starts=%d opens=%d", f.launcher.startCount(), f.pipes.opens)
	}
}

func TestRunnerForwardsOutcomes(t *testing.T) {
	runner, f := newRunnerFixture(t)
	tracks := threeTracks()
	testsupport.WriteFile(t, runner.OutputPath(f.outDir, tracks[0]), 3)
	f.launcher.waitHook = func() {
		if f.launcher.startCount() == 1 {
			f.launcher.handles[0].payload = ""
		}
	}
	log := &outcomeLog{}

	_, err := runner.Run(context.Background(), capture.RunRequest{
		Tracks:       tracks,
		OutputDir:    f.outDir,
		SkipExisting: true,
		Observer:     capture.Observers{log},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log.outcomes) != 3 {
		t.Fatalf("expected an outcome per track, got %d", len(log.outcomes))
	}
	want := []capture.Status{capture.StatusSkipped, capture.StatusError, capture.StatusOK}
	for i, outcome := range log.outcomes {
		if outcome.Index != i+1 || outcome.Status != want[i] {
			t.Fatalf("outcome %d = index %d status %s, want %s", i, outcome.Index, outcome.Status, want[i])
		}
	}
	if !strings.Contains(log.outcomes[1].Diagnostic, "output file missing") {
		t.Fatalf("failed outcome should carry its diagnostic: %q", log.outcomes[1].Diagnostic)
	}
}

func TestRunnerStopsBetweenTracksWhenCancelled(t *testing.T) {
	runner, f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	progress := capture.ObserverFunc(func(index, total int, track playlist.Track, status capture.Status) {
		if index == 1 && status == capture.StatusOK {
			cancel()
		}
	})

	report, err := runner.Run(ctx, capture.RunRequest{Tracks: threeTracks(), OutputDir: f.outDir, Observer: progress})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Outcomes) != 1 || f.launcher.startCount() != 1 {
		t.Fatalf("expected exactly one capture, got outcomes=%d starts=%d", len(report.Outcomes), f.launcher.startCount())
	}
}

func TestRunnerHooks(t *testing.T) {
	journal := &recordingJournal{}
	publisher := &recordingPublisher{err: errors.New("bucket offline")}
	notifier := &recordingNotifier{}
	runner, f := newRunnerFixture(t, capture.WithJournal(journal), capture.WithPublisher(publisher), capture.WithNotifier(notifier))
	tracks := threeTracks()
	testsupport.WriteFile(t, runner.OutputPath(f.outDir, tracks[2]), 3)

	report, err := runner.Run(context.Background(), capture.RunRequest{
		Title:        "Mix",
		Tracks:       tracks,
		OutputDir:    f.outDir,
		SkipExisting: true,
		Observer:     &progressLog{},
		RunID:        "run-42",
	})
	if err != nil {
		t.Fatalf("publish failures must not fail the run: %v", err)
	}
	if report.RunID != "run-42" {
		t.Fatalf("run id = %q", report.RunID)
	}
	if len(journal.started) != 1 || len(journal.tracks) != 3 || len(journal.finished) != 1 || journal.runErrs[0] != nil {
		t.Fatalf("journal = %+v", journal)
	}
	if len(publisher.paths) != 2 {
		t.Fatalf("only captured tracks are published, got %v", publisher.paths)
	}
	if notifier.started != 1 || notifier.finished != 1 || notifier.failed != 0 {
		t.Fatalf("notifier = %+v", notifier)
	}
}

func TestRunnerRequiresOutputDir(t *testing.T) {
	runner, _ := newRunnerFixture(t)
	_, err := runner.Run(context.Background(), capture.RunRequest{Tracks: threeTracks(), Observer: &progressLog{}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestObserversFanOut(t *testing.T) {
	a, b := &progressLog{}, &progressLog{}
	capture.Observers{a, nil, b}.OnProgress(1, 2, songTrack, capture.StatusSkipped)
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out failed: %d %d", len(a.events), len(b.events))
	}
}

func TestConsoleObserverWritesLines(t *testing.T) {
	var buf strings.Builder
	obs := capture.NewConsoleObserver(&buf)
	obs.OnProgress(2, 5, songTrack, capture.StatusSkipped)
	if got := buf.String(); got != "[2/5] SKIP A - Song\n" {
		t.Fatalf("console line = %q", got)
	}
}
