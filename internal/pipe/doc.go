// Package pipe provisions the named byte-stream endpoint that connects the
// playback sink (writer) to the encoder (reader).
//
// A caller-provided fixed path is created on demand and never removed. When no
// path is configured a unique FIFO is synthesized in a private temp directory
// and removed again by Close.
package pipe
