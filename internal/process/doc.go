// Package process supervises the encoder and playback-sink subprocesses that
// make up one capture.
//
// A Pair is a scoped resource: the encoder always starts before the sink, a
// failed start tears down whatever already runs, and Close guarantees both
// processes are signalled, reaped, and gone on every exit path. Each process's
// stderr is retained as a bounded tail for diagnostics.
package process
