// Package session guards the single active capture and exposes its progress
// to any number of concurrent readers.
//
// A Tracker owns the process-wide RecordingSession state. Begin admits at most
// one run at a time, both within the process (mutex) and across processes (a
// non-blocking flock on the state directory), and rejects a second request
// with services.ErrBusy without touching the current state. Readers take
// copy-on-read snapshots or subscribe to a stream of them.
package session
