// Package logger wraps logrus behind a small interface so packages can log
// with structured fields and tests can capture entries with a null logger.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// Common structured field names.
const (
	FieldPackage  = "package"
	FieldFunction = "function"
)

// Fields is a set of structured log fields.
type Fields map[string]any

// Log is the logging interface used across the client.
type Log interface {
	WithField(key string, value any) Log
	WithFields(fields Fields) Log

	Trace(msg string)
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error, msg string)
	Errorf(err error, format string, args ...any)
}

type logrusLog struct {
	entry *logrus.Entry
}

// New creates a logrus-backed Log writing to out at the given level.
func New(out io.Writer, level logrus.Level) Log {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	return &logrusLog{entry: logrus.NewEntry(l)}
}

// NewNullLogger creates a Log that records entries in a test hook
// instead of writing them anywhere.
func NewNullLogger() (Log, *logtest.Hook) {
	l, hook := logtest.NewNullLogger()
	return &logrusLog{entry: logrus.NewEntry(l)}, hook
}

func (l *logrusLog) WithField(key string, value any) Log {
	return &logrusLog{entry: l.entry.WithField(key, value)}
}

func (l *logrusLog) WithFields(fields Fields) Log {
	return &logrusLog{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLog) Trace(msg string) {
	l.entry.Trace(msg)
}

func (l *logrusLog) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *logrusLog) Info(msg string) {
	l.entry.Info(msg)
}

func (l *logrusLog) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *logrusLog) Error(err error, msg string) {
	l.entry.WithError(err).Error(msg)
}

func (l *logrusLog) Errorf(err error, format string, args ...any) {
	l.entry.WithError(err).Errorf(format, args...)
}
