package session_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tracktap/internal/capture"
	"tracktap/internal/playlist"
	"tracktap/internal/services"
	"tracktap/internal/session"
)

func TestTrackerStartsIdle(t *testing.T) {
	tracker := session.NewTracker("")
	snap := tracker.Snapshot()
	if snap.Running || snap.Status != session.PhaseIdle || snap.Kind != session.KindNone {
		t.Fatalf("unexpected initial state %+v", snap)
	}
}

func TestBeginRejectsSecondRunWithoutMutation(t *testing.T) {
	tracker := session.NewTracker(filepath.Join(t.TempDir(), "capture.lock"))
	run, err := tracker.Begin(session.KindPlaylist, "Mix", 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	run.OnProgress(2, 3, playlist.Track{Title: "Song", Artists: []string{"A"}}, capture.StatusRecording)
	before := tracker.Snapshot()

	if _, err := tracker.Begin(session.KindTrack, "Other", 1); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	after := tracker.Snapshot()
	if after.Kind != before.Kind || after.Title != before.Title || after.Current != before.Current || after.Total != before.Total {
		t.Fatalf("busy rejection mutated state: before %+v after %+v", before, after)
	}

	run.Finish()
	next, err := tracker.Begin(session.KindTrack, "Other", 1)
	if err != nil {
		t.Fatalf("Begin after finish: %v", err)
	}
	next.Finish()
}

func TestConcurrentBeginAdmitsExactlyOne(t *testing.T) {
	tracker := session.NewTracker(filepath.Join(t.TempDir(), "capture.lock"))

	release := make(chan struct{})
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := tracker.Begin(session.KindPlaylist, "Mix", 1)
			results <- err
			if err != nil {
				return
			}
			// Simulate a slow job holding the session.
			<-release
			run.Finish()
		}()
	}

	var accepted, busy int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, services.ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	close(release)
	wg.Wait()

	if accepted != 1 || busy != 1 {
		t.Fatalf("accepted=%d busy=%d", accepted, busy)
	}
}

func TestFileLockExcludesOtherTrackers(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state", "capture.lock")
	first := session.NewTracker(lockPath)
	second := session.NewTracker(lockPath)

	run, err := first.Begin(session.KindTrack, "", 1)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := second.Begin(session.KindTrack, "", 1); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy from second tracker, got %v", err)
	}
	if second.Snapshot().Running {
		t.Fatal("rejected tracker must stay idle")
	}
	run.Finish()

	run2, err := second.Begin(session.KindTrack, "", 1)
	if err != nil {
		t.Fatalf("second tracker after release: %v", err)
	}
	run2.Finish()
}

func TestProgressAndFailure(t *testing.T) {
	tracker := session.NewTracker("")
	run, err := tracker.Begin(session.KindPlaylist, "Mix", 2)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	run.SetRunID("run-1")
	run.OnProgress(1, 2, playlist.Track{Title: "One", Artists: []string{"A"}}, capture.StatusSkipped)
	snap := tracker.Snapshot()
	if snap.Status != session.PhaseSkip || snap.Current != 1 || snap.Track == nil || snap.Track.Title != "One" || snap.RunID != "run-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	run.Fail(errors.New("remote authorization error: token expired"))
	run.Fail(errors.New("ignored"))
	snap = tracker.Snapshot()
	if snap.Running || snap.Status != session.PhaseError || snap.Error != "remote authorization error: token expired" {
		t.Fatalf("unexpected failed snapshot %+v", snap)
	}
}

func TestTrackFailureSurfacesDiagnostic(t *testing.T) {
	tracker := session.NewTracker("")
	run, err := tracker.Begin(session.KindPlaylist, "Mix", 2)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var obs capture.Observer = capture.Observers{run}
	one := playlist.Track{Title: "One", Artists: []string{"A"}}
	two := playlist.Track{Title: "Two", Artists: []string{"B"}}

	obs.OnProgress(1, 2, one, capture.StatusRecording)
	obs.OnProgress(1, 2, one, capture.StatusError)
	obs.(capture.OutcomeObserver).OnOutcome(2, capture.Outcome{
		Index:      1,
		Track:      one,
		Status:     capture.StatusError,
		Diagnostic: "output file missing\nffmpeg: pipe:: Invalid data found",
	})
	snap := tracker.Snapshot()
	if !snap.Running || snap.Status != session.PhaseError || snap.Error != "output file missing" {
		t.Fatalf("unexpected snapshot after track failure %+v", snap)
	}

	obs.OnProgress(2, 2, two, capture.StatusRecording)
	if snap = tracker.Snapshot(); snap.Error != "" {
		t.Fatalf("next track should clear the error, got %q", snap.Error)
	}

	run.OnOutcome(2, capture.Outcome{Index: 2, Track: two, Status: capture.StatusError})
	if snap = tracker.Snapshot(); snap.Error != "capture failed" {
		t.Fatalf("empty diagnostic should still set an error, got %q", snap.Error)
	}
	run.OnOutcome(2, capture.Outcome{Index: 2, Track: two, Status: capture.StatusOK, Diagnostic: "ignored"})
	if snap = tracker.Snapshot(); snap.Error != "capture failed" {
		t.Fatalf("successful outcome must not overwrite the error, got %q", snap.Error)
	}
	run.Finish()
}

func TestSnapshotIsACopy(t *testing.T) {
	tracker := session.NewTracker("")
	run, _ := tracker.Begin(session.KindTrack, "", 1)
	defer run.Finish()
	run.OnProgress(1, 1, playlist.Track{Title: "One", Artists: []string{"A"}}, capture.StatusRecording)

	snap := tracker.Snapshot()
	snap.Track.Artists[0] = "mutated"
	if tracker.Snapshot().Track.Artists[0] != "A" {
		t.Fatal("snapshot must not alias tracker state")
	}
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	tracker := session.NewTracker("")
	updates, cancel := tracker.Subscribe()
	defer cancel()

	initial := <-updates
	if initial.Running {
		t.Fatalf("initial snapshot should be idle: %+v", initial)
	}

	run, err := tracker.Begin(session.KindTrack, "", 1)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	run.OnProgress(1, 1, playlist.Track{Title: "One"}, capture.StatusOK)
	run.Finish()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if !snap.Running && snap.Status == session.PhaseOK {
				return
			}
		case <-deadline:
			t.Fatal("did not observe final snapshot")
		}
	}
}

func TestLockHeldReflectsActiveRun(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state", "capture.lock")
	held, err := session.LockHeld(lockPath)
	if err != nil || held {
		t.Fatalf("expected free lock before any run, held=%v err=%v", held, err)
	}

	tracker := session.NewTracker(lockPath)
	run, err := tracker.Begin(session.KindPlaylist, "Mix", 2)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	held, err = session.LockHeld(lockPath)
	if err != nil || !held {
		t.Fatalf("expected lock held during run, held=%v err=%v", held, err)
	}

	run.Finish()
	held, err = session.LockHeld(lockPath)
	if err != nil || held {
		t.Fatalf("expected lock released after run, held=%v err=%v", held, err)
	}
}
