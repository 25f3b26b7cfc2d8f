// Command tracktap captures Spotify tracks and playlists to audio files and
// inspects the recordings, run history, and environment.
package main
