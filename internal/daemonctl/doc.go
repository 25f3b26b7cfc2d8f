// Package daemonctl starts and stops a detached tracktap daemon using the PID
// file it records in the state directory.
package daemonctl
