package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2024-05-01 10:00:00 INFO capture: pipe ready pipe_path=/tmp/x run_id=abc
//
// Attributes bound through With are rendered once, when they are bound, and
// the component attribute becomes the line prefix instead of a field.
type consoleHandler struct {
	out       *lockedWriter
	level     *slog.LevelVar
	addSource bool
	component string
	bound     string
	prefix    string
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) write(p []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(p)
	return err
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{out: &lockedWriter{w: w}, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var line strings.Builder
	line.WriteString(formatTimestamp(ts))
	line.WriteString(" " + levelLabel(record.Level) + " ")

	component := h.component
	var fields strings.Builder
	fields.WriteString(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		if c, ok := h.appendAttr(&fields, h.prefix, attr); ok && component == "" {
			component = c
		}
		return true
	})

	if component != "" {
		line.WriteString(component + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			line.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	line.WriteString(fields.String())
	line.WriteByte('\n')
	return h.out.write([]byte(line.String()))
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var fields strings.Builder
	fields.WriteString(h.bound)
	for _, attr := range attrs {
		if c, ok := clone.appendAttr(&fields, h.prefix, attr); ok && clone.component == "" {
			clone.component = c
		}
	}
	clone.bound = fields.String()
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendAttr writes " key=value" for attr, descending into groups. When attr
// is the top-level component it is not written; its value is returned
// instead with ok set.
func (h *consoleHandler) appendAttr(b *strings.Builder, prefix string, attr slog.Attr) (string, bool) {
	if attr.Equal(slog.Attr{}) {
		return "", false
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			h.appendAttr(b, prefix, member)
		}
		return "", false
	}
	if attr.Key == "" {
		return "", false
	}
	if prefix == "" && attr.Key == FieldComponent {
		return attrString(attr.Value), true
	}
	b.WriteString(" " + prefix + attr.Key + "=" + formatValue(attr.Value))
	return "", false
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
