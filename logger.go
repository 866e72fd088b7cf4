package todospa

import (
	"github.com/sirupsen/logrus"
)

// Logger defines the interface for structured logging across the state core.
// Every component takes a Logger so the embedding program controls where
// output goes and how it looks.
//
// Arguments after the message are key-value pairs:
//
//	logger.Info("Navigated", "path", "/card", "revision", 4)
type Logger interface {
	// Info logs an informational message, e.g. a completed remote action.
	Info(msg string, args ...any)

	// Error logs an error that was handled at a boundary and not propagated.
	Error(msg string, args ...any)

	// Warn logs an unusual but harmless condition, e.g. a dropped stale response.
	Warn(msg string, args ...any)

	// Debug logs diagnostic detail such as every state revision.
	Debug(msg string, args ...any)
}

// LogrusLogger adapts a logrus logger to the Logger interface.
// Key-value pairs become logrus fields.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps the given logrus logger.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// With returns a logger that always carries the given key-value pairs.
func (l *LogrusLogger) With(args ...any) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithFields(fields(args))}
}

func (l *LogrusLogger) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

func (l *LogrusLogger) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

func (l *LogrusLogger) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

// fields turns alternating key-value args into logrus fields.
// A trailing key without a value is recorded under "!BADKEY".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 >= len(args) {
			f["!BADKEY"] = args[i]
			break
		}
		f[key] = args[i+1]
	}
	return f
}

// NopLogger discards everything. Useful in tests.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}
