// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting and supports context-based logging
// with request IDs, run IDs, and module names. When a Better Stack token is
// configured, records are additionally shipped to the remote sink through an
// async pipeline so log shipping never blocks harvest or request paths.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
}

// ShutdownFunc flushes any buffered log records. It is a no-op for loggers
// without a remote sink.
type ShutdownFunc func(ctx context.Context) error

// Options configures logger construction.
type Options struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// BetterstackToken enables the remote Better Stack sink when non-empty.
	BetterstackToken string

	// BetterstackEndpoint overrides the default ingest endpoint (optional).
	BetterstackEndpoint string
}

// New creates a new logger instance with JSON formatting
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new logger instance with JSON formatting writing to the provided writer
func NewWithWriter(level string, w io.Writer) *Logger {
	handler := newJSONHandler(w, parseLevel(level))
	return &Logger{Logger: slog.New(NewContextHandler(handler))}
}

// NewWithOptions creates the full logging pipeline: a JSON handler on stdout,
// optionally fanned out to Better Stack through an AsyncHandler, with a
// ContextHandler on top so tracing values flow into every record.
//
// The returned ShutdownFunc must be called before process exit to flush
// buffered remote records.
func NewWithOptions(opts Options) (*Logger, ShutdownFunc) {
	level := parseLevel(opts.Level)
	stdout := newJSONHandler(os.Stdout, level)

	if opts.BetterstackToken == "" {
		return &Logger{Logger: slog.New(NewContextHandler(stdout))},
			func(context.Context) error { return nil }
	}

	remote := slogbetterstack.Option{
		Level:    level,
		Token:    opts.BetterstackToken,
		Endpoint: opts.BetterstackEndpoint,
	}.NewBetterstackHandler()

	async := NewAsyncHandler(remote, AsyncOptions{})
	multi := NewMultiHandler(stdout, async)
	return &Logger{Logger: slog.New(NewContextHandler(multi))}, async.Shutdown
}

// parseLevel maps the configured level string to a slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newJSONHandler builds the JSON handler with renamed standard keys.
func newJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
				// slog uses RFC3339Nano by default, which is fine
			}
			if a.Key == slog.LevelKey {
				a.Key = "level"
				level := a.Value.String()
				if level == "WARN" {
					level = "warning"
				} else {
					level = strings.ToLower(level)
				}
				a.Value = slog.StringValue(level)
			}
			if a.Key == slog.MessageKey {
				a.Key = "message"
			}
			return a
		},
	}
	return slog.NewJSONHandler(w, opts)
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{Logger: l.With("module", module)}
}

// WithRequestID creates a new entry with request ID field
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With("request_id", requestID)}
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err)}
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value)}
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// Fatal logs a message at error level and exits the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// Compatibility methods for logrus-style formatting

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}
