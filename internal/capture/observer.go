package capture

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"tracktap/internal/playlist"
)

// Observer receives per-track progress. index is 1-based. A track is reported
// with StatusRecording when its capture begins and once more with its final
// status; skipped tracks are reported once.
type Observer interface {
	OnProgress(index, total int, track playlist.Track, status Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index, total int, track playlist.Track, status Status)

// OnProgress calls f.
func (f ObserverFunc) OnProgress(index, total int, track playlist.Track, status Status) {
	f(index, total, track, status)
}

// OutcomeObserver is an optional extension of Observer that also receives
// the full outcome of each finished or skipped track, right after its final
// OnProgress call.
type OutcomeObserver interface {
	OnOutcome(total int, outcome Outcome)
}

func notifyOutcome(obs Observer, total int, outcome Outcome) {
	if oo, ok := obs.(OutcomeObserver); ok {
		oo.OnOutcome(total, outcome)
	}
}

// Observers fans progress out to each non-nil observer in order.
type Observers []Observer

// OnProgress implements Observer.
func (o Observers) OnProgress(index, total int, track playlist.Track, status Status) {
	for _, obs := range o {
		if obs != nil {
			obs.OnProgress(index, total, track, status)
		}
	}
}

// OnOutcome implements OutcomeObserver for the members that support it.
func (o Observers) OnOutcome(total int, outcome Outcome) {
	for _, obs := range o {
		if obs != nil {
			notifyOutcome(obs, total, outcome)
		}
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// ConsoleObserver writes one line per progress event.
type ConsoleObserver struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
}

// NewConsoleObserver writes to w, colouring status labels when w is a terminal.
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleObserver{w: w, colorize: shouldColorize(w)}
}

// OnProgress implements Observer.
func (c *ConsoleObserver) OnProgress(index, total int, track playlist.Track, status Status) {
	label := statusLabel(status)
	if c.colorize {
		if color := statusColor(status); color != "" {
			label = color + label + ansiReset
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "[%d/%d] %s %s\n", index, total, label, track.Label())
}

func statusLabel(status Status) string {
	switch status {
	case StatusRecording:
		return "REC "
	case StatusOK:
		return "OK  "
	case StatusSkipped:
		return "SKIP"
	case StatusError:
		return "FAIL"
	default:
		return string(status)
	}
}

func statusColor(status Status) string {
	switch status {
	case StatusRecording:
		return ansiBlue
	case StatusOK:
		return ansiGreen
	case StatusSkipped:
		return ansiYellow
	case StatusError:
		return ansiRed
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
