package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/services"
)

// Role names one side of a Pair.
type Role string

const (
	RoleEncoder Role = "encoder"
	RoleSink    Role = "sink"
)

// DefaultGrace is how long the sink gets to exit after SIGTERM.
const DefaultGrace = 3 * time.Second

// DefaultTailLines bounds the retained stderr lines per process.
const DefaultTailLines = 20

// Target is the pipe/output pair owned by one capture.
type Target struct {
	PipePath   string
	OutputPath string
}

// WaitResult reports how the encoder concluded.
type WaitResult struct {
	// Killed is true when the encoder hit the timeout and was forced down.
	// A partial output file is expected in that case.
	Killed     bool
	ExitCode   int
	Elapsed    time.Duration
	SinkForced bool
	// SinkExited is true when the sink quit before the capture window was
	// over. Whatever the encoder wrote is then truncated.
	SinkExited bool
}

// Diagnostics carries the stderr tails of both processes.
type Diagnostics struct {
	Encoder []string `json:"encoder,omitempty"`
	Sink    []string `json:"sink,omitempty"`
}

// Empty reports whether neither process wrote anything.
func (d Diagnostics) Empty() bool {
	return len(d.Encoder) == 0 && len(d.Sink) == 0
}

// String renders both tails in a human-readable block.
func (d Diagnostics) String() string {
	var b strings.Builder
	write := func(label string, lines []string) {
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("--- ")
		b.WriteString(label)
		b.WriteString(" stderr ---")
		for _, line := range lines {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	write(string(RoleEncoder), d.Encoder)
	write(string(RoleSink), d.Sink)
	return b.String()
}

// Handle is a running capture pair. Capture code depends on this interface
// so tests can substitute fakes.
type Handle interface {
	Wait(ctx context.Context, timeout time.Duration) (WaitResult, error)
	Diagnostics(lines int) Diagnostics
	Close() error
}

// Starter launches capture pairs.
type Starter interface {
	Start(ctx context.Context, target Target, window time.Duration) (Handle, error)
}

type startFunc func(role Role, binary string, args []string, stderr *TailBuffer) (*scopedProcess, error)

// Launcher starts encoder/sink pairs from configuration.
type Launcher struct {
	Encoder    config.Encoder
	Sink       config.Librespot
	DeviceName string
	Grace      time.Duration
	TailLines  int

	logger *slog.Logger
	start  startFunc
}

// NewLauncher builds a Launcher from the application config.
func NewLauncher(cfg *config.Config, logger *slog.Logger) *Launcher {
	l := &Launcher{
		Grace:     DefaultGrace,
		TailLines: DefaultTailLines,
		logger:    logging.NewComponentLogger(logger, "process"),
		start:     startScoped,
	}
	if cfg != nil {
		l.Encoder = cfg.Encoder
		l.Sink = cfg.Librespot
		l.DeviceName = cfg.Spotify.DeviceName
		if cfg.Capture.SinkGraceSeconds > 0 {
			l.Grace = time.Duration(cfg.Capture.SinkGraceSeconds) * time.Second
		}
		if cfg.Capture.DiagnosticLines > 0 {
			l.TailLines = cfg.Capture.DiagnosticLines
		}
	}
	return l
}

// Start launches the encoder and then the sink. If the sink fails to start the
// encoder is torn down before the error is returned.
func (l *Launcher) Start(ctx context.Context, target Target, window time.Duration) (Handle, error) {
	logger := logging.WithContext(ctx, l.logger)
	if strings.TrimSpace(target.PipePath) == "" || strings.TrimSpace(target.OutputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "process", "start", "pipe and output paths are required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(target.OutputPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrProcess, "process", "start", "create output directory", err)
	}
	start := l.start
	if start == nil {
		start = startScoped
	}
	tailLines := l.TailLines
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}

	encoderBinary := binaryOr(l.Encoder.Binary, "ffmpeg")
	encoderArgs := EncoderArgs(l.Encoder, target.PipePath, target.OutputPath, window)
	encoder, err := start(RoleEncoder, encoderBinary, encoderArgs, NewTailBuffer(tailLines))
	if err != nil {
		return nil, services.Wrap(services.ErrProcess, "process", "start encoder", encoderBinary, err)
	}
	logger.Debug("encoder started",
		logging.Int("pid", encoder.pid()),
		logging.String("command", encoderBinary+" "+strings.Join(encoderArgs, " ")),
	)

	sinkBinary := binaryOr(l.Sink.Binary, "librespot")
	sinkArgs := SinkArgs(l.Sink, l.DeviceName, target.PipePath)
	sink, err := start(RoleSink, sinkBinary, sinkArgs, NewTailBuffer(tailLines))
	if err != nil {
		encoder.terminate(l.grace())
		return nil, services.Wrap(services.ErrProcess, "process", "start sink", sinkBinary, err)
	}
	logger.Debug("sink started",
		logging.Int("pid", sink.pid()),
		logging.String("command", sinkBinary+" "+strings.Join(sinkArgs, " ")),
	)

	return &Pair{encoder: encoder, sink: sink, window: window, grace: l.grace(), logger: logger}, nil
}

func (l *Launcher) grace() time.Duration {
	if l.Grace <= 0 {
		return DefaultGrace
	}
	return l.Grace
}

func binaryOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// Pair is a running encoder plus sink.
type Pair struct {
	encoder *scopedProcess
	sink    *scopedProcess
	window  time.Duration
	grace   time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
}

// Wait blocks until the encoder exits or timeout elapses, then stops the sink.
// A timeout kills the encoder and is reported as Killed, not as an error.
// A sink that quits inside the capture window ends the wait early and is
// reported as SinkExited. Context cancellation tears both processes down and
// returns ctx.Err().
func (p *Pair) Wait(ctx context.Context, timeout time.Duration) (WaitResult, error) {
	var result WaitResult
	if timeout <= 0 {
		timeout = time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	sinkDone := p.sink.done
	var ctxErr error
wait:
	for {
		select {
		case <-p.encoder.done:
			break wait
		case <-sinkDone:
			sinkDone = nil
			if time.Since(p.encoder.started) >= p.window {
				// The encoder closed the FIFO at the end of its window and the
				// sink followed; let the encoder finish normally.
				continue
			}
			result.SinkExited = true
			logging.WarnWithContext(p.logger, "sink exited before the capture window ended", "sink_exited",
				logging.Int("sink_exit_code", p.sink.exitCode()),
				logging.Duration("window", p.window),
				logging.String(logging.FieldErrorHint, "check librespot credentials and network access"),
				logging.String(logging.FieldImpact, "the track is incomplete and will be reported as failed"),
			)
			p.stopEncoderAfterSink()
			break wait
		case <-timer.C:
			p.logger.Info("encoder reached capture ceiling; stopping",
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldEventType, "encoder_timeout"),
			)
			p.encoder.kill()
			result.Killed = true
			break wait
		case <-ctx.Done():
			p.encoder.kill()
			ctxErr = ctx.Err()
			break wait
		}
	}
	result.ExitCode = p.encoder.exitCode()
	result.Elapsed = time.Since(p.encoder.started)
	result.SinkForced = p.sink.terminate(p.grace)
	if result.SinkForced {
		p.logger.Debug("sink ignored terminate; killed", logging.Duration("grace", p.grace))
	}
	if ctxErr != nil {
		return result, fmt.Errorf("wait for encoder: %w", ctxErr)
	}
	return result, nil
}

// stopEncoderAfterSink gives the encoder one grace period to drain the FIFO
// and exit on EOF. An encoder that never saw a writer is still blocked in
// open and has to be stopped.
func (p *Pair) stopEncoderAfterSink() {
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.encoder.done:
	case <-timer.C:
		p.encoder.terminate(p.grace)
	}
}

// Diagnostics returns the last lines of each process's stderr.
func (p *Pair) Diagnostics(lines int) Diagnostics {
	return Diagnostics{
		Encoder: p.encoder.stderr.Lines(lines),
		Sink:    p.sink.stderr.Lines(lines),
	}
}

// Close guarantees both processes have exited. It is idempotent and safe to
// defer immediately after a successful Start.
func (p *Pair) Close() error {
	p.closeOnce.Do(func() {
		p.encoder.terminate(p.grace)
		p.sink.terminate(p.grace)
	})
	return nil
}
