package capture

// State is a step of the single-track capture state machine.
type State string

const (
	StateIdle              State = "idle"
	StatePipesReady        State = "pipes_ready"
	StateProcessesStarted  State = "processes_started"
	StatePlaybackTriggered State = "playback_triggered"
	StateManualFallback    State = "manual_fallback"
	StateCapturing         State = "capturing"
	StateFinalizing        State = "finalizing"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is the per-track result reported to observers.
type Status string

const (
	StatusRecording Status = "recording"
	StatusOK        Status = "ok"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Final reports whether s concludes a track.
func (s Status) Final() bool {
	return s == StatusOK || s == StatusSkipped || s == StatusError
}

// Fallback records why a capture ran without an automatic play command.
type Fallback string

const (
	FallbackNone           Fallback = ""
	FallbackRequested      Fallback = "requested"
	FallbackDeviceNotFound Fallback = "device_not_found"
	FallbackRejected       Fallback = "playback_rejected"
	FallbackRemoteError    Fallback = "remote_error"
	FallbackMissingURI     Fallback = "missing_uri"
)

// Manual reports whether playback had to be started by a human.
func (f Fallback) Manual() bool {
	return f != FallbackNone
}
