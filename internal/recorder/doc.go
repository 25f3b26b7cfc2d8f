// Package recorder is the entry point shared by the CLI and the control
// panel. It claims the recording session, resolves playlists from the
// catalog, derives output directories, and drives the capture runner with
// the configured history, notification, and publish hooks.
//
// Record* calls block until the capture ends. Start* calls claim the session
// synchronously, so busy rejection is reported to the caller, then capture in
// the background.
package recorder
