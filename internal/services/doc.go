// Package services defines shared utilities consumed by the capture engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, track positions, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     per-track (process errors) or run-fatal (resource and credential errors).
//
// Use these helpers when wiring new capture logic so error handling and
// observability stay uniform across the CLI and the control panel.
package services
