package capture

import (
	"time"

	"tracktap/internal/config"
	"tracktap/internal/playlist"
)

// Timing is the wall-clock policy for one capture.
type Timing struct {
	// StartPad is added to the track length to form the encoder window.
	StartPad time.Duration
	// WaitSlack is added to the window to form the wait ceiling.
	WaitSlack time.Duration
	// Settle is the pause that lets the sink register before discovery.
	Settle time.Duration
}

// DefaultTiming mirrors the config defaults.
func DefaultTiming() Timing {
	return Timing{
		StartPad:  3 * time.Second,
		WaitSlack: 10 * time.Second,
		Settle:    5 * time.Second,
	}
}

// TimingFromConfig reads the capture section.
func TimingFromConfig(cfg *config.Config) Timing {
	t := DefaultTiming()
	if cfg == nil {
		return t
	}
	if cfg.Capture.StartPadSeconds >= 0 {
		t.StartPad = time.Duration(cfg.Capture.StartPadSeconds) * time.Second
	}
	if cfg.Capture.WaitSlackSeconds >= 0 {
		t.WaitSlack = time.Duration(cfg.Capture.WaitSlackSeconds) * time.Second
	}
	if cfg.Capture.SettleSeconds >= 0 {
		t.Settle = time.Duration(cfg.Capture.SettleSeconds) * time.Second
	}
	return t
}

// Window is the amount of audio the encoder is told to keep.
func (t Timing) Window(track playlist.Track) time.Duration {
	return track.Duration() + t.StartPad
}

// Ceiling is how long the job waits for the encoder before killing it.
func (t Timing) Ceiling(track playlist.Track) time.Duration {
	return t.Window(track) + t.WaitSlack
}
