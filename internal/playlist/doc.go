// Package playlist models the track records consumed by the capture engine and
// the saved-playlist catalog they are loaded from.
//
// Playlists are stored as JSON documents, either as <name>.json or
// <name>/playlist.json beneath the catalog directory. Track order in the
// document is capture order and is preserved on load.
package playlist
