// Package panel serves the HTTP control panel: capture triggers, live
// session status over a websocket, saved playlists, recording downloads,
// and run history.
//
// Capture triggers return 202 once the session has been claimed and run in
// the background; a second trigger while one is active gets 409. When
// paths.api_token is set every /api route requires a bearer token.
package panel
