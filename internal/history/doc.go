// Package history keeps a SQLite journal of capture runs and their per-track
// outcomes. It is informational: the presence of a recording on disk, not a
// journal row, decides whether a track is skipped.
package history
