package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// Logger wraps slog.Logger with convenience methods and production defaults
type Logger struct {
	*slog.Logger
}

// New creates a structured logger for the given level and environment.
//
// Log levels: "debug", "info", "warn", "error"
//
// Production writes JSON; every other environment writes text.
//
//	logg := logger.New("info", "production")
//	logg.Info("server started", "port", 8080)
func New(level, environment string) *Logger {
	return NewWithOptions(level, os.Stdout, environment == "production")
}

// NewWithOptions creates a logger with custom output and format options
func NewWithOptions(level string, w io.Writer, jsonFormat bool) *Logger {
	logLevel := parseLevel(level)

	opts := &slog.HandlerOptions{
		AddSource: logLevel == slog.LevelDebug, // Include file:line only in debug mode
		Level:     logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithOptions("error", io.Discard, false)
}

// parseLevel converts a string log level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback when none is.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithFields returns a new logger with the given fields pre-attached
//
//	reqLogger := logg.WithFields("request_id", reqID, "user_id", userID)
//	reqLogger.Info("processing request")
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError attaches err under "error". Domain errors also carry their
// kind under "error_kind".
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	args := []any{"error", err.Error()}
	if de, ok := domain.AsError(err); ok {
		args = append(args, "error_kind", de.Kind().String())
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal logs at error level and exits with code 1
// Use sparingly - only for truly unrecoverable errors at startup
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// HTTPRequest logs HTTP request details with consistent structure.
// 5xx logs at error level and 4xx at warn.
func (l *Logger) HTTPRequest(method, path string, statusCode int, duration time.Duration, args ...any) {
	allArgs := append([]any{
		"method", method,
		"path", path,
		"status", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, args...)

	switch {
	case statusCode >= 500:
		l.Error("http request", allArgs...)
	case statusCode >= 400:
		l.Warn("http request", allArgs...)
	default:
		l.Info("http request", allArgs...)
	}
}

// ForRequest returns a child logger carrying request_id and any extra fields
func (l *Logger) ForRequest(requestID string, args ...any) *Logger {
	allArgs := append([]any{"request_id", requestID}, args...)
	return l.WithFields(allArgs...)
}
