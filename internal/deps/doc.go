// Package deps resolves the external binaries a capture needs (the encoder
// and the playback sink) and reports whether each one is usable.
package deps
