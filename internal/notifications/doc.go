// Package notifications delivers capture run events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Notifier
// adapts a Service to the capture runner's hook interface and applies the
// per-event toggles from config.toml.
package notifications
