package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders records as single syslog-style lines:
//
//	<RFC3339> bakeryd[pid]: [level] component: message key=value ...
//
// Every record is also mirrored into the application log ring buffer so the
// diagnostic surface can serve recent history without re-reading files.
type consoleHandler struct {
	opts  slog.HandlerOptions
	out   io.Writer
	mu    sync.Mutex
	bound []slog.Attr
}

var (
	prefixMu      sync.RWMutex
	processPrefix = "bakeryd"
)

// SetPrefix changes the process name stamped on every console line.
func SetPrefix(name string) {
	prefixMu.Lock()
	processPrefix = name
	prefixMu.Unlock()
}

// GetPrefix returns the process name stamped on every console line.
func GetPrefix() string {
	prefixMu.RLock()
	defer prefixMu.RUnlock()
	return processPrefix
}

func newConsoleHandler(out io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	h := &consoleHandler{out: out}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

// component finds the promoted component attribute, record attrs winning
// over bound ones.
func (h *consoleHandler) component(r slog.Record) string {
	name := ""
	for _, a := range h.bound {
		if a.Key == "component" {
			name = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			name = a.Value.String()
			return false
		}
		return true
	})
	return strings.ToLower(name)
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	comp := h.component(r)

	var b strings.Builder
	b.Grow(256)
	b.WriteString(ts.Format(time.RFC3339))
	fmt.Fprintf(&b, " %s[%d]: [%s] ", strings.ToLower(GetPrefix()), os.Getpid(), strings.ToLower(r.Level.String()))
	if comp != "" {
		b.WriteString(comp)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)

	extra := make(map[string]string)
	writeAttr := func(a slog.Attr) {
		if a.Key == "component" {
			return
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		v := a.Value.String()
		if strings.ContainsAny(v, " \t\n") {
			fmt.Fprintf(&b, "%q", v)
		} else {
			b.WriteString(v)
		}
		extra[a.Key] = v
	}
	for _, a := range h.bound {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	_, err := io.WriteString(h.out, b.String())
	h.mu.Unlock()

	source := comp
	if source == "" {
		source = "system"
	}
	appLog().add(AppLogEntry{
		Timestamp: ts,
		Level:     levelName(r.Level),
		Source:    source,
		Message:   r.Message,
		Extra:     extra,
	})
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{
		opts:  h.opts,
		out:   h.out,
		bound: append(append([]slog.Attr(nil), h.bound...), attrs...),
	}
}

// WithGroup is accepted but flattened; the console format has no nesting.
func (h *consoleHandler) WithGroup(string) slog.Handler { return h }
