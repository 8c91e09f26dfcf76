package core

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g., integration with logrus, zap, etc.)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogrusLogger adapts a logrus.Logger to the Logger interface
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger wraps an existing logrus logger
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{logger: logger}
}

// NewDefaultLogger creates a text logger writing to out at the given level.
// Unknown level names fall back to info.
func NewDefaultLogger(out io.Writer, level string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &LogrusLogger{logger: l}
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(msg string, fields ...Field) {
	l.entry(fields).Debug(msg)
}

// Info logs an info message
func (l *LogrusLogger) Info(msg string, fields ...Field) {
	l.entry(fields).Info(msg)
}

// Warn logs a warning message
func (l *LogrusLogger) Warn(msg string, fields ...Field) {
	l.entry(fields).Warn(msg)
}

// Error logs an error message
func (l *LogrusLogger) Error(msg string, fields ...Field) {
	l.entry(fields).Error(msg)
}

func (l *LogrusLogger) entry(fields []Field) *logrus.Entry {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.logger.WithFields(data)
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
