// Package capture is the orchestration engine. A Job records exactly one
// track: it opens the pipe, starts the encoder/sink pair, triggers playback on
// the registered device (or falls back to manual play), waits out the track,
// and checks the result. A Runner drives Jobs over a playlist strictly one at
// a time with skip-existing and progress reporting.
//
// Error policy:
//   - services.ErrResource and services.ErrRemoteAuth stop the whole run.
//   - Any other per-track failure becomes an Outcome with StatusError and the
//     run continues with the next track.
//   - A missing device, a rejected play command, and an encoder that hits its
//     ceiling are not errors; they are recorded on the Outcome.
package capture
