package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// Logger provides leveled logging throughout the application. Messages are
// printf-formatted; structured context is attached with With.
type Logger struct {
	sl     *slog.Logger
	closer io.Closer
}

// LogOptions configures NewLoggerWithOptions.
type LogOptions struct {
	Writer io.Writer
	Level  slog.Leveler
	// JSON switches the console handler from tint to slog's JSON handler.
	JSON bool
	// Fluent, when non-nil, receives every record as well.
	Fluent *fluent.Fluent
}

// NewLogger creates a Logger writing colored text to stdout at info level.
func NewLogger() *Logger {
	return NewLoggerWithOptions(LogOptions{})
}

// NewLoggerWithOptions builds the console handler and, optionally, a Fluent
// Bit sink behind it.
func NewLoggerWithOptions(opts LogOptions) *Logger {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}

	var console slog.Handler
	if opts.JSON {
		console = slog.NewJSONHandler(opts.Writer, &slog.HandlerOptions{Level: opts.Level})
	} else {
		console = tint.NewHandler(opts.Writer, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "2006-01-02 15:04:05",
		})
	}

	l := &Logger{}
	handler := console
	if opts.Fluent != nil {
		handler = fanoutHandler{console, newFluentHandler(opts.Fluent, opts.Level)}
		l.closer = opts.Fluent
	}
	l.sl = slog.New(handler)
	return l
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger that carries the given key/value pairs on
// every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...), closer: l.closer}
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

// Close flushes and closes the Fluent sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.sl.Enabled(ctx, level) {
		return
	}
	l.sl.Log(ctx, level, fmt.Sprintf(format, args...))
}
