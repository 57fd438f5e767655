// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It keeps a printf-style package API on top of zerolog so call sites stay terse, and
// exposes the underlying zerolog.Logger for components that want structured fields.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging level
type Level = zerolog.Level

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel = zerolog.DebugLevel
	// InfoLevel is the default logging priority.
	InfoLevel = zerolog.InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel = zerolog.WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel = zerolog.ErrorLevel
)

var (
	// Global logger instance; disabled until Init is called.
	defaultLogger = zerolog.Nop()
)

// ParseLevel maps a config level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format.
// Format "json" writes one JSON object per line; "text" writes a human-readable console line.
func Init(level string, format string) {
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter is Init with an explicit output, used by tests.
func InitWithWriter(w io.Writer, level string, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if strings.ToLower(format) == "text" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05.000",
		}
	}

	defaultLogger = zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Component returns a child of the default logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return defaultLogger.With().Str("component", name).Logger()
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().CallerSkipFrame(1).Msgf(format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	defaultLogger.Info().CallerSkipFrame(1).Msgf(format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().CallerSkipFrame(1).Msgf(format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	defaultLogger.Error().CallerSkipFrame(1).Msgf(format, args...)
}

// Fatal logs a message at FatalLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	defaultLogger.WithLevel(zerolog.FatalLevel).Msg(msg)
	if defaultLogger.GetLevel() == zerolog.Disabled {
		fmt.Fprintln(os.Stderr, "[FATAL] "+msg)
	}
	os.Exit(1)
}
