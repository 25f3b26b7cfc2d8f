// Package preflight provides readiness checks for the binaries, directories,
// and remote services a capture depends on.
//
// These checks run in two contexts:
//   - `tracktap check` runs RunAll and exits non-zero when a required check fails.
//   - `tracktap status` and the daemon start-up log use the individual checks to
//     describe the environment without blocking.
//
// Optional features (notifications, publishing) are reported but never fail
// the run when disabled.
package preflight
