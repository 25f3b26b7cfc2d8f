// Package fileutil copies recordings with integrity verification.
package fileutil
