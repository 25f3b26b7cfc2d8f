// Package daemonrun hosts the long-running tracktap process: logging setup,
// the PID file, the capture stack, and the control panel.
package daemonrun
