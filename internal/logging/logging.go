// Package logging provides the optional structured-logging hook the
// staging engine and cmd/gitfsdemo attach diagnostics to. The core
// filesystem operations never call into it on a correctness path. A
// filesystem holds a nil *Logger by default and then logs nothing; the
// Logger methods themselves require a non-nil receiver.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger behind a small chained-field API, the way
// the rest of the retrieval pack exposes structured logging without
// leaking logrus types into call sites.
type Logger struct {
	log *logrus.Logger
}

// Entry accumulates fields for a single log line.
type Entry struct {
	entry *logrus.Entry
	level string
}

// New creates a Logger writing to output (defaults to os.Stderr) at the
// named level ("debug", "info", "warn", "error"); an unrecognized level
// falls back to info.
func New(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(output)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
	})

	return &Logger{log: log}
}

func (l *Logger) entry(level string) *Entry {
	return &Entry{entry: logrus.NewEntry(l.log), level: level}
}

// Debug starts a debug-level entry.
func (l *Logger) Debug() *Entry { return l.entry("debug") }

// Info starts an info-level entry.
func (l *Logger) Info() *Entry { return l.entry("info") }

// Warn starts a warn-level entry.
func (l *Logger) Warn() *Entry { return l.entry("warn") }

// Error starts an error-level entry.
func (l *Logger) Error() *Entry { return l.entry("error") }

// Str adds a string field.
func (e *Entry) Str(key, value string) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Int adds an int field.
func (e *Entry) Int(key string, value int) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Bool adds a bool field.
func (e *Entry) Bool(key string, value bool) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Err adds an error field; a nil error is a no-op.
func (e *Entry) Err(err error) *Entry {
	if err != nil {
		e.entry = e.entry.WithError(err)
	}
	return e
}

// Msg emits msg at the entry's level with every accumulated field.
func (e *Entry) Msg(msg string) {
	switch e.level {
	case "debug":
		e.entry.Debug(msg)
	case "warn":
		e.entry.Warn(msg)
	case "error":
		e.entry.Error(msg)
	default:
		e.entry.Info(msg)
	}
}
