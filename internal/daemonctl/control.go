package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"tracktap/internal/daemonrun"
)

// ErrDaemonNotRunning indicates no live daemon PID is recorded.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 100 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `serve` process from executablePath. The child gets
// its own session so it survives the launching terminal.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if strings.EqualFold(strings.TrimSpace(opts.LogLevel), "debug") {
		args = append(args, "--verbose")
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForPID polls stateDir until a live daemon PID appears.
func WaitForPID(stateDir string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		if pid := daemonrun.ReadPID(stateDir); pid != 0 {
			return pid, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("daemon failed to start within %s; check the log directory", timeout)
		}
		time.Sleep(pollInterval)
	}
}

// EnsureStarted launches the daemon unless one is already recorded in stateDir.
func EnsureStarted(stateDir, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if pid := daemonrun.ReadPID(stateDir); pid != 0 {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	pid, err := WaitForPID(stateDir, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// StopAndTerminate sends SIGTERM to the recorded daemon and force-kills it
// if it is still alive after gracePeriod. Running captures are cancelled.
func StopAndTerminate(stateDir string, gracePeriod time.Duration) (StopResult, error) {
	pid := daemonrun.ReadPID(stateDir)
	if pid == 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(pid, gracePeriod) {
		return result, nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	_ = os.Remove(daemonrun.PIDPath(stateDir))
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then starts it again.
func Restart(stateDir, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (StopResult, StartResult, error) {
	stopResult, err := StopAndTerminate(stateDir, stopGracePeriod)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return stopResult, StartResult{}, err
	}
	startResult, err := EnsureStarted(stateDir, executablePath, opts, startWaitTimeout)
	return stopResult, startResult, err
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !alive(pid)
}

func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
