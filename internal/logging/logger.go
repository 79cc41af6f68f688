// Package logging wraps log/slog with the conventions bakeryd uses across
// every subsystem: a process-wide default logger, component-scoped children,
// a human-readable console handler for interactive use, JSON for machine
// consumption, and an in-memory ring buffer mirroring everything for the
// diagnostic surface.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
)

// Level aliases slog.Level so callers never import both packages.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config selects the handler, destination, and floor level for a Logger.
type Config struct {
	Level     Level
	Output    io.Writer
	JSON      bool
	AddSource bool
}

// Logger is a *slog.Logger plus the level var and output it was built with,
// so children created by WithComponent share dynamic level changes.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	output io.Writer
}

// DefaultConfig is info-level console output on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: defaultOutput}
}

// New builds a Logger from cfg. A nil Output falls back to stderr.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	lv := new(slog.LevelVar)
	lv.Set(cfg.Level)

	opts := &slog.HandlerOptions{Level: lv, AddSource: cfg.AddSource}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = newConsoleHandler(out, opts)
	}
	return &Logger{Logger: slog.New(h), level: lv, output: out}
}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once

	// defaultOutput is what DefaultConfig hands out. CaptureStdio swaps it
	// so the default logger keeps writing to the real stderr once os.Stderr
	// has been replaced with a capture pipe.
	defaultOutput io.Writer = os.Stderr
)

// Default returns the process-wide logger, building one lazily.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(DefaultConfig())
		}
	})
	return defaultLogger
}

// SetDefault replaces the process-wide logger. Call before anything caches
// the result of Default.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// SetLevel adjusts the floor level of this logger and every child derived
// from it.
func (l *Logger) SetLevel(level Level) { l.level.Set(level) }

// GetLevel reports the current floor level.
func (l *Logger) GetLevel() Level { return l.level.Level() }

// WithComponent scopes the logger to a named subsystem. The console handler
// promotes the component into the line header.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name), level: l.level, output: l.output}
}

// WithFields attaches a fixed attribute set to every record.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.Logger.With(args...), level: l.level, output: l.output}
}

// Audit records an operator-visible action at info level, so it is dropped
// when the logger's floor is above info.
func (l *Logger) Audit(action, resource string, details map[string]any) {
	args := []any{
		"audit", true,
		"action", action,
		"resource", resource,
		"timestamp", clock.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range details {
		args = append(args, k, v)
	}
	l.Info("AUDIT", args...)
}

// Metric records a named measurement at debug level.
func (l *Logger) Metric(name string, value float64, labels map[string]string) {
	args := []any{"metric", true, "name", name, "value", value}
	for k, v := range labels {
		args = append(args, "label_"+k, v)
	}
	l.Debug("METRIC", args...)
}

// Package-level shorthands on the default logger.

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	Default().Error(fmt.Sprintf(format, args...))
}

// Audit records an operator-visible action on the default logger.
func Audit(action, resource string, details map[string]any) {
	Default().Audit(action, resource, details)
}

// WithComponent scopes the default logger to a named subsystem.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}
