// Package logs reads the tracktap log file for the `logs` command: the last N
// lines, then optionally every line appended afterwards. Follow mode survives
// log rotation.
package logs
