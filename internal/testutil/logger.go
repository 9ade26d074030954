// Package testutil provides test helpers for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Record is a captured log entry.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture collects records so tests can assert on what was reported.
type LogCapture struct {
	mu      sync.Mutex
	records []Record
	next    slog.Handler
}

// NewCaptureLogger returns a logger that records every entry and also
// forwards it to t.Log().
func NewCaptureLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	t.Helper()
	c := &LogCapture{next: NewTestLogger(t).Handler()}
	return slog.New(c), c
}

// Records returns a copy of the captured entries.
func (c *LogCapture) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Count returns how many entries at level or above were captured.
func (c *LogCapture) Count(level slog.Level) int {
	n := 0
	for _, r := range c.Records() {
		if r.Level >= level {
			n++
		}
	}
	return n
}

// Enabled implements slog.Handler.
func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (c *LogCapture) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	c.mu.Lock()
	c.records = append(c.records, Record{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.mu.Unlock()
	return c.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler. Attributes bound with With are not
// captured, only forwarded.
func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureChild{parent: c, next: c.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (c *LogCapture) WithGroup(name string) slog.Handler {
	return &captureChild{parent: c, next: c.next.WithGroup(name)}
}

type captureChild struct {
	parent *LogCapture
	next   slog.Handler
}

func (h *captureChild) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureChild) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.parent.mu.Lock()
	h.parent.records = append(h.parent.records, Record{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.parent.mu.Unlock()
	return h.next.Handle(ctx, r)
}

func (h *captureChild) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureChild{parent: h.parent, next: h.next.WithAttrs(attrs)}
}

func (h *captureChild) WithGroup(name string) slog.Handler {
	return &captureChild{parent: h.parent, next: h.next.WithGroup(name)}
}
