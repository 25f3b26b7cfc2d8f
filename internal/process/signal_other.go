//go:build !unix

package process

import "os"

func signalTerminate(proc *os.Process) error {
	return proc.Kill()
}
