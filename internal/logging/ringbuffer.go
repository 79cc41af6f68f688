package logging

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
)

// AppLogEntry is one record in the in-memory application log.
type AppLogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Source    string            `json:"source"`
	Message   string            `json:"message"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RingBuffer keeps the last N application log entries. All methods are safe
// for concurrent use.
type RingBuffer struct {
	mu   sync.RWMutex
	buf  []AppLogEntry
	next int
	full bool
}

// NewRingBuffer allocates a buffer holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]AppLogEntry, capacity)}
}

func (rb *RingBuffer) add(e AppLogEntry) {
	rb.mu.Lock()
	rb.buf[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.buf)
	if rb.next == 0 {
		rb.full = true
	}
	rb.mu.Unlock()
}

// Add records an entry, evicting the oldest once the buffer is full.
func (rb *RingBuffer) Add(e AppLogEntry) { rb.add(e) }

// Len reports how many entries are currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *RingBuffer) len() int {
	if rb.full {
		return len(rb.buf)
	}
	return rb.next
}

// All returns every held entry, oldest first.
func (rb *RingBuffer) All() []AppLogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.copyLast(rb.len())
}

// Last returns up to n newest entries, oldest first.
func (rb *RingBuffer) Last(n int) []AppLogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if held := rb.len(); n > held {
		n = held
	}
	return rb.copyLast(n)
}

// copyLast assumes rb.mu is held.
func (rb *RingBuffer) copyLast(n int) []AppLogEntry {
	out := make([]AppLogEntry, 0, n)
	start := rb.next - n
	if start < 0 {
		start += len(rb.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, rb.buf[(start+i)%len(rb.buf)])
	}
	return out
}

// BySource returns up to limit entries from one source, oldest first. A
// limit of zero means no cap.
func (rb *RingBuffer) BySource(source string, limit int) []AppLogEntry {
	var out []AppLogEntry
	for _, e := range rb.All() {
		if e.Source != source {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Clear drops every held entry.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	rb.next = 0
	rb.full = false
	rb.mu.Unlock()
}

var (
	appLogBuf  *RingBuffer
	appLogOnce sync.Once
)

const appLogCapacity = 5000

// AppLog returns the process-wide application log buffer.
func AppLog() *RingBuffer {
	appLogOnce.Do(func() {
		appLogBuf = NewRingBuffer(appLogCapacity)
	})
	return appLogBuf
}

func appLog() *RingBuffer { return AppLog() }

// Log appends a formatted entry to the application log buffer.
func Log(source, level, format string, args ...any) {
	AppLog().add(AppLogEntry{
		Timestamp: clock.Now(),
		Level:     level,
		Source:    source,
		Message:   fmt.Sprintf(format, args...),
	})
}

// LogWithExtra is Log plus a free-form attribute map.
func LogWithExtra(source, level string, extra map[string]string, format string, args ...any) {
	AppLog().add(AppLogEntry{
		Timestamp: clock.Now(),
		Level:     level,
		Source:    source,
		Message:   fmt.Sprintf(format, args...),
		Extra:     extra,
	})
}

func levelName(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "debug"
	case l <= slog.LevelInfo:
		return "info"
	case l <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// Per-subsystem shorthands.

func TCLog(level, format string, args ...any)        { Log("tc", level, format, args...) }
func BatchLog(level, format string, args ...any)     { Log("batch", level, format, args...) }
func SchedulerLog(level, format string, args ...any) { Log("scheduler", level, format, args...) }
func OverrideLog(level, format string, args ...any)  { Log("overrides", level, format, args...) }
