package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"tracktap/internal/capture"
	"tracktap/internal/playlist"
	"tracktap/internal/services"
)

// Kind distinguishes single-track runs from playlist runs.
type Kind string

const (
	KindNone     Kind = "none"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Phase is the coarse status shown to observers.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseSkip      Phase = "skip"
	PhaseOK        Phase = "ok"
	PhaseError     Phase = "error"
)

// TrackSummary is the active track as shown to observers.
type TrackSummary struct {
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	URI     string   `json:"uri,omitempty"`
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Running   bool          `json:"running"`
	Kind      Kind          `json:"kind"`
	RunID     string        `json:"run_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	Current   int           `json:"current"`
	Total     int           `json:"total"`
	Track     *TrackSummary `json:"track,omitempty"`
	Status    Phase         `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	if s.Track != nil {
		track := *s.Track
		track.Artists = append([]string(nil), s.Track.Artists...)
		s.Track = &track
	}
	return s
}

// Tracker is the lock-guarded owner of the recording session.
type Tracker struct {
	lockPath string

	mu          sync.Mutex
	state       Snapshot
	subscribers map[chan Snapshot]struct{}
}

// NewTracker returns an idle tracker. An empty lockPath disables the
// cross-process lock.
func NewTracker(lockPath string) *Tracker {
	return &Tracker{
		lockPath:    strings.TrimSpace(lockPath),
		state:       Snapshot{Kind: KindNone, Status: PhaseIdle},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Running reports whether a capture is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Running
}

// Subscribe returns a channel that receives the current snapshot and every
// later change. Slow subscribers miss intermediate snapshots rather than
// blocking the capture. Call the returned function to unsubscribe.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	ch <- t.state.clone()
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// Begin claims the session for a new run. It fails with services.ErrBusy,
// leaving the state untouched, when another run is active in this process or
// holds the capture lock in another process.
func (t *Tracker) Begin(kind Kind, title string, total int) (*Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Running {
		return nil, services.Wrap(services.ErrBusy, "session", "begin", describe(t.state), nil)
	}

	var lock *flock.Flock
	if t.lockPath != "" {
		if err := os.MkdirAll(filepath.Dir(t.lockPath), 0o755); err != nil {
			return nil, services.Wrap(services.ErrResource, "session", "begin", "create lock directory", err)
		}
		lock = flock.New(t.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, services.Wrap(services.ErrResource, "session", "begin", "acquire capture lock", err)
		}
		if !ok {
			return nil, services.Wrap(services.ErrBusy, "session", "begin",
				fmt.Sprintf("another tracktap process holds %s", t.lockPath), nil)
		}
	}

	now := time.Now()
	t.state = Snapshot{
		Running:   true,
		Kind:      kind,
		Title:     title,
		Total:     total,
		Status:    PhaseRecording,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.broadcastLocked()
	return &Run{tracker: t, lock: lock}, nil
}

func describe(s Snapshot) string {
	if s.Title != "" {
		return fmt.Sprintf("%s capture %q in progress (%d/%d)", s.Kind, s.Title, s.Current, s.Total)
	}
	return fmt.Sprintf("%s capture in progress (%d/%d)", s.Kind, s.Current, s.Total)
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
	t.state.UpdatedAt = time.Now()
	t.broadcastLocked()
}

func (t *Tracker) broadcastLocked() {
	for ch := range t.subscribers {
		snap := t.state.clone()
		select {
		case ch <- snap:
		default:
			// Drop the stale value so the newest snapshot wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Run is the write handle of the active capture. It implements
// capture.Observer and capture.OutcomeObserver.
type Run struct {
	tracker *Tracker
	lock    *flock.Flock

	once sync.Once
}

// SetRunID records the run identifier once it is known.
func (r *Run) SetRunID(id string) {
	r.tracker.update(func(s *Snapshot) { s.RunID = id })
}

// OnProgress implements capture.Observer.
func (r *Run) OnProgress(index, total int, track playlist.Track, status capture.Status) {
	r.tracker.update(func(s *Snapshot) {
		s.Current = index
		s.Total = total
		s.Track = &TrackSummary{
			Title:   track.Title,
			Artists: append([]string(nil), track.Artists...),
			URI:     track.URI,
		}
		s.Status = phaseFor(status)
		if status == capture.StatusRecording {
			s.Error = ""
		}
	})
}

// OnOutcome implements capture.OutcomeObserver. A failed track leaves the
// first line of its diagnostic in Snapshot.Error until the next track starts.
func (r *Run) OnOutcome(_ int, outcome capture.Outcome) {
	if outcome.Status != capture.StatusError {
		return
	}
	r.tracker.update(func(s *Snapshot) {
		s.Error = firstLine(outcome.Diagnostic)
	})
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if line = strings.TrimSpace(line); line == "" {
		return "capture failed"
	}
	return line
}

// Fail records err on the session and ends the run.
func (r *Run) Fail(err error) {
	r.end(func(s *Snapshot) {
		s.Status = PhaseError
		if err != nil {
			s.Error = err.Error()
		}
	})
}

// Finish ends the run, keeping the last reported status.
func (r *Run) Finish() {
	r.end(func(*Snapshot) {})
}

func (r *Run) end(fn func(*Snapshot)) {
	r.once.Do(func() {
		// Release the file lock first so a Begin that observes Running=false
		// can always take it.
		if r.lock != nil {
			_ = r.lock.Unlock()
		}
		r.tracker.update(func(s *Snapshot) {
			fn(s)
			s.Running = false
		})
	})
}

func phaseFor(status capture.Status) Phase {
	switch status {
	case capture.StatusRecording:
		return PhaseRecording
	case capture.StatusSkipped:
		return PhaseSkip
	case capture.StatusOK:
		return PhaseOK
	case capture.StatusError:
		return PhaseError
	default:
		return Phase(status)
	}
}

// LockHeld reports whether another process currently holds the capture lock
// at path. A missing lock file means no capture is running.
func LockHeld(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, services.Wrap(services.ErrResource, "session", "lock state", "inspect capture lock", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
