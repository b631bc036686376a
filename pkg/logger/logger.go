// Package logger provides the structured logging abstraction used across credkit.
// Library packages depend only on the Logger interface; the zap-backed implementation
// lives in internal/infrastructure/monitoring.
package logger

import "context"

// Fields is a set of structured key-value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields ...Fields)

	// Info logs an informational message
	Info(ctx context.Context, msg string, fields ...Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields ...Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields ...Fields)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields creates a new logger with additional fields
	WithFields(fields Fields) Logger

	// ForContext returns a logger bound to ctx, if one was stored there
	ForContext(ctx context.Context) Logger
}

// String creates a single-entry Fields
func String(key string, value string) Fields {
	return Fields{key: value}
}

// Int creates a single-entry Fields
func Int(key string, value int) Fields {
	return Fields{key: value}
}

// Any creates a single-entry Fields
func Any(key string, value interface{}) Fields {
	return Fields{key: value}
}

// Component returns a logger tagged with the component name
func Component(l Logger, name string) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	return l.WithFields(Fields{"component": name})
}
