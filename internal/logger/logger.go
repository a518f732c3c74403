// Package logger provides configurable logging for treesync.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	logLevel      *slog.LevelVar
	initOnce      sync.Once
	logOutput     io.Writer = io.Discard
	debugFilter   bool
)

// SetFilterDebug enables verbose diagnostics for the filtering handler itself.
func SetFilterDebug(enabled bool) {
	debugFilter = enabled
}

// Init initializes the logger with a processed Config and an output writer.
// Safe to call once; later calls are no-ops.
func Init(cfg Config, output io.Writer) {
	initOnce.Do(func() {
		if output == nil {
			output = io.Discard
		}
		logOutput = output
		cfg.process()

		logLevel = new(slog.LevelVar)
		logLevel.Set(cfg.level.Level())

		opts := slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.SourceKey {
					source := a.Value.Any().(*slog.Source)
					source.File = filepath.Base(source.File)
				}
				if a.Key == slog.TimeKey {
					a.Value = slog.StringValue(a.Value.Time().Format(time.TimeOnly))
				}
				return a
			},
		}
		base := slog.NewTextHandler(output, &opts)
		handler := newFilteringHandler(base, &cfg)
		defaultLogger = slog.New(handler)

		r := slog.NewRecord(time.Now(), slog.LevelInfo, "Logger initialized", 0)
		r.AddAttrs(slog.String("level", cfg.LogLevel))
		_ = base.Handle(context.Background(), r)
	})
}

// ensureInitialized provides a safe discard logger if Init was never called.
func ensureInitialized() {
	initOnce.Do(func() {
		logLevel = new(slog.LevelVar)
		logLevel.Set(slog.LevelInfo)
		handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel})
		defaultLogger = slog.New(handler)
	})
}

// logAtLevel creates and logs a record at the given level, capturing the
// caller of the public wrapper as the source location.
func logAtLevel(level slog.Level, tag string, format string, args ...interface{}) {
	ensureInitialized()
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}

	var pcs [1]uintptr
	// Skip runtime.Callers, logAtLevel and the wrapper (Debugf etc.).
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	if tag != "" {
		r.AddAttrs(slog.String(tagKey, tag))
	}
	_ = defaultLogger.Handler().Handle(context.Background(), r)
}

// Debugf logs a debug message using Printf-style formatting.
func Debugf(format string, args ...interface{}) {
	logAtLevel(slog.LevelDebug, "", format, args...)
}

// DebugTagf logs a debug message carrying a tag attribute, so subsystems can
// be filtered in and out via the logger config.
func DebugTagf(tag string, format string, args ...interface{}) {
	logAtLevel(slog.LevelDebug, tag, format, args...)
}

// Infof logs an info message using Printf-style formatting.
func Infof(format string, args ...interface{}) {
	logAtLevel(slog.LevelInfo, "", format, args...)
}

// Warnf logs a warning message using Printf-style formatting.
func Warnf(format string, args ...interface{}) {
	logAtLevel(slog.LevelWarn, "", format, args...)
}

// Errorf logs an error message using Printf-style formatting.
func Errorf(format string, args ...interface{}) {
	logAtLevel(slog.LevelError, "", format, args...)
}

// Fatalf logs an error message then exits.
func Fatalf(format string, args ...interface{}) {
	logAtLevel(slog.LevelError, "", format, args...)
	os.Exit(1)
}

// Get retrieves the configured logger instance.
func Get() *slog.Logger {
	ensureInitialized()
	return defaultLogger
}
