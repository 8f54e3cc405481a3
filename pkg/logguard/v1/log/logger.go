// Package log defines the logging interface shared by logguard packages.
package log

import (
	"context"
	"log/slog"
)

// Logger is the logging surface used by the engine, the monitor lifecycle
// and the CLI. Implementations live in internal/logger; tests may supply
// their own.
type Logger interface {
	// Debugf logs a formatted message at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs a formatted message at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs a formatted message at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs a formatted message at ERROR level. When the last argument
	// is an error, implementations should also attach it as a structured field.
	Errorf(format string, args ...interface{})

	// Log emits msg at level with key-value attributes.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx is Log with a context, so trace identifiers can be attached.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a Logger that adds args to every record.
	With(args ...interface{}) Logger
	// IsEnabled reports whether records at level would be emitted.
	IsEnabled(level slog.Level) bool
}
