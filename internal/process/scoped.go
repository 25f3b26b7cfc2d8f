package process

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long Wait lingers on stderr after the process exits,
// e.g. when an orphaned grandchild still holds the pipe open.
const waitDelay = 2 * time.Second

// scopedProcess owns one started command and reaps it exactly once.
type scopedProcess struct {
	role    Role
	cmd     *exec.Cmd
	stderr  *TailBuffer
	started time.Time

	done    chan struct{}
	waitErr error

	termOnce sync.Once
}

func startScoped(role Role, binary string, args []string, stderr *TailBuffer) (*scopedProcess, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", role, err)
	}
	p := &scopedProcess{
		role:    role,
		cmd:     cmd,
		stderr:  stderr,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *scopedProcess) pid() int {
	if p == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *scopedProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *scopedProcess) exitCode() int {
	<-p.done
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// kill forces the process down and waits for it to be reaped.
func (p *scopedProcess) kill() {
	if p == nil || p.exited() {
		return
	}
	_ = p.cmd.Process.Kill()
	<-p.done
}

// terminate asks the process to stop, waits up to grace, then kills it. It
// returns true when the kill was needed.
func (p *scopedProcess) terminate(grace time.Duration) bool {
	if p == nil {
		return false
	}
	forced := false
	p.termOnce.Do(func() {
		if p.exited() {
			return
		}
		if err := signalTerminate(p.cmd.Process); err != nil {
			p.kill()
			forced = true
			return
		}
		if grace <= 0 {
			p.kill()
			forced = true
			return
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			p.kill()
			forced = true
		}
	})
	<-p.done
	return forced
}
