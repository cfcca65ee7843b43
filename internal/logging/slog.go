// Package logging provides types.Logger implementations: a log/slog adapter,
// a no-op logger and a testing.T logger.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/arloliu/opcsub/types"
)

// SlogLogger implements types.Logger using Go's standard log/slog package.
type SlogLogger struct {
	logger *slog.Logger
}

// Compile-time assertion that SlogLogger implements Logger.
var _ types.Logger = (*SlogLogger)(nil)

// NewSlog creates a new slog-based logger.
//
// Parameters:
//   - logger: The underlying slog.Logger instance (slog.Default() when nil)
//
// Returns:
//   - *SlogLogger: A new logger instance that wraps the provided slog.Logger
//
// Example:
//
//	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, session, opcsub.WithLogger(logging.NewSlog(slog.New(handler))))
//	if err != nil {
//	    return err
//	}
func NewSlog(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogLogger{logger: logger}
}

// NewSlogDefault creates a slog-based logger backed by slog.Default().
func NewSlogDefault() *SlogLogger {
	return NewSlog(nil)
}

// Named returns a logger that tags every record with the given component name.
//
// Parameters:
//   - component: Component name, emitted under the "component" key
//
// Returns:
//   - *SlogLogger: Derived logger sharing the same handler
func (l *SlogLogger) Named(component string) *SlogLogger {
	return &SlogLogger{logger: l.logger.With("component", component)}
}

// Enabled reports whether the underlying handler emits records at level.
func (l *SlogLogger) Enabled(level slog.Level) bool {
	return l.logger.Enabled(context.Background(), level)
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at Error level (slog has no Fatal level) and terminates the process.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1) //nolint:revive // Fatal should exit the program
}
