//go:build unix

package process

import (
	"os"

	"golang.org/x/sys/unix"
)

func signalTerminate(proc *os.Process) error {
	return proc.Signal(unix.SIGTERM)
}
