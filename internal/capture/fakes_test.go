package capture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tracktap/internal/pipe"
	"tracktap/internal/process"
	"tracktap/internal/services"
)

type fakePipes struct {
	mu    sync.Mutex
	err   error
	opens int
	path  string
}

func (f *fakePipes) Open(preferred string) (*pipe.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	path := preferred
	if path == "" {
		path = f.path
	}
	if path == "" {
		path = "/tmp/tracktap-test.fifo"
	}
	return pipe.NewExisting(path), nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	startErr error
	// payload is written to the output path during Wait; empty writes nothing.
	payload  string
	killed   bool
	sinkExit bool
	diag     process.Diagnostics
	starts   int
	windows  []time.Duration
	targets  []process.Target
	handles  []*fakeHandle
	waitHook func()
}

func (f *fakeLauncher) Start(ctx context.Context, target process.Target, window time.Duration) (process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	f.windows = append(f.windows, window)
	f.targets = append(f.targets, target)
	h := &fakeHandle{target: target, payload: f.payload, killed: f.killed, sinkExit: f.sinkExit, diag: f.diag, hook: f.waitHook}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeLauncher) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeHandle struct {
	target   process.Target
	payload  string
	killed   bool
	sinkExit bool
	diag     process.Diagnostics
	hook     func()
	timeouts []time.Duration
	closes   int
}

func (h *fakeHandle) Wait(ctx context.Context, timeout time.Duration) (process.WaitResult, error) {
	h.timeouts = append(h.timeouts, timeout)
	if h.hook != nil {
		h.hook()
	}
	if h.payload != "" {
		if err := os.MkdirAll(filepath.Dir(h.target.OutputPath), 0o755); err != nil {
			return process.WaitResult{}, err
		}
		if err := os.WriteFile(h.target.OutputPath, []byte(h.payload), 0o644); err != nil {
			return process.WaitResult{}, err
		}
	}
	return process.WaitResult{Killed: h.killed, SinkExited: h.sinkExit, Elapsed: time.Millisecond}, nil
}

func (h *fakeHandle) Diagnostics(int) process.Diagnostics { return h.diag }

func (h *fakeHandle) Close() error {
	h.closes++
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	deviceID string
	found    bool
	findErr  error
	playOK   bool
	playErr  error
	authErr  error
	auths    int
	finds    int
	plays    []string
	playedOn []string
}

func (f *fakeRemote) Authorize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths++
	return f.authErr
}

func (f *fakeRemote) WaitForDevice(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return "", false, f.findErr
	}
	return f.deviceID, f.found, nil
}

func (f *fakeRemote) StartPlayback(ctx context.Context, deviceID, uri string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, uri)
	f.playedOn = append(f.playedOn, deviceID)
	if f.playErr != nil {
		return false, f.playErr
	}
	return f.playOK, nil
}

func okRemote() *fakeRemote {
	return &fakeRemote{deviceID: "dev-1", found: true, playOK: true}
}

type sleepLog struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return ctx.Err()
}

var errAuth = services.Wrap(services.ErrRemoteAuth, "spotify", "token", "expired", nil)

var errUnsupported = services.Wrap(services.ErrResource, "pipe", "mkfifo", pipe.UnsupportedHint, errors.New("operation not supported"))
