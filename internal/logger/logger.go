// Package logger provides structured JSON logging for spontis.
//
// The logger supports multiple log levels (DEBUG, INFO, WARN, ERROR) and writes
// one JSON object per line through zerolog. In the "local" environment a
// human-readable console writer is used instead.
//
// Example usage:
//
//	logger.Info("source fetched", logger.Fields{
//	    "source": "Bergen Kino",
//	    "events": 42,
//	})
//
//	logger.Error("writing feed failed", logger.Fields{
//	    "path": "data/events.json",
//	}, err)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger = New(LevelInfo, os.Stderr)

// ParseLevel converts a configuration string (debug, info, warn, warning,
// error; any case) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a JSON logger with the specified minimum level and output.
// Messages below the minimum level are discarded.
func New(level Level, output io.Writer) *Logger {
	zl := zerolog.New(output).
		Level(zerologLevel(level)).
		With().
		Timestamp().
		Str("service", "spontis").
		Logger()
	return &Logger{zl: zl}
}

// NewConsole creates a logger with human-readable output for local runs.
func NewConsole(level Level, output io.Writer) *Logger {
	return New(level, zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	})
}

// ForEnvironment picks the console writer for "local" and JSON otherwise.
func ForEnvironment(environment string, level Level, output io.Writer) *Logger {
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return NewConsole(level, output)
	}
	return New(level, output)
}

// SetDefault sets the package-level logger used by Debug, Info, Warn and Error.
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

// Zerolog exposes the underlying logger for libraries that want one.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{zl: l.zl.With().Fields(map[string]interface{}(fields)).Logger()}
}

func (l *Logger) log(level Level, message string, fields Fields, err error) {
	evt := l.zl.WithLevel(zerologLevel(level))
	if evt == nil {
		return
	}
	if len(fields) > 0 {
		evt = evt.Fields(map[string]interface{}(fields))
	}
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg(message)
}

// Debug logs detailed diagnostic information.
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields, nil)
}

// Info logs general operational information.
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields, nil)
}

// Warn logs an issue that does not stop the run.
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields, nil)
}

// Error logs a failure with an optional error value.
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(LevelError, message, fields, err)
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
