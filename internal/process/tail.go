package process

import (
	"bytes"
	"strings"
	"sync"
)

// TailBuffer is an io.Writer that keeps the last N complete lines written to
// it, plus any trailing partial line.
type TailBuffer struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	start   int
	partial []byte
}

// NewTailBuffer returns a buffer that retains at most limit lines.
func NewTailBuffer(limit int) *TailBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &TailBuffer{limit: limit, lines: make([]string, 0, limit)}
}

// Write implements io.Writer.
func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			b.partial = append(b.partial, data...)
			break
		}
		line := append(b.partial, data[:idx]...)
		b.partial = nil
		b.push(strings.TrimRight(string(line), "\r"))
		data = data[idx+1:]
	}
	return len(p), nil
}

func (b *TailBuffer) push(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(b.lines) < b.limit {
		b.lines = append(b.lines, line)
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % b.limit
}

// Lines returns up to n of the most recent lines, oldest first. n <= 0 returns
// everything retained.
func (b *TailBuffer) Lines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := make([]string, 0, len(b.lines)+1)
	for i := 0; i < len(b.lines); i++ {
		ordered = append(ordered, b.lines[(b.start+i)%len(b.lines)])
	}
	if len(b.partial) > 0 {
		ordered = append(ordered, strings.TrimRight(string(b.partial), "\r"))
	}
	filtered := ordered[:0]
	for _, line := range ordered {
		if strings.TrimSpace(line) != "" {
			filtered = append(filtered, line)
		}
	}
	if n > 0 && len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return append([]string(nil), filtered...)
}

// String joins the retained lines with newlines.
func (b *TailBuffer) String() string {
	return strings.Join(b.Lines(0), "\n")
}
