// Package recordings enumerates captured MP3 files under the recordings root
// and streams them individually or as a zip archive per playlist folder.
//
// Names supplied by callers are single path elements. Anything containing a
// separator or a dot-dot element is rejected before touching the filesystem.
package recordings
