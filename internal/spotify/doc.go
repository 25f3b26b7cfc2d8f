// Package spotify is the remote playback client: it lists the account's live
// Connect devices, finds the one the sink registered, and tells it to play a
// track.
//
// Only authorization failures are errors the caller must stop on
// (services.ErrRemoteAuth). A device that never appears or a rejected play
// command are ordinary outcomes, reported as found=false or ok=false, because
// a human can still start playback by hand.
package spotify
