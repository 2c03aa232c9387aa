// Package logger wraps logrus behind a narrow interface so the rest of the
// module depends on a handful of verbs instead of the full logrus API.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used throughout walscan.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Silent suppresses all output when on, used by tests and by callers
	// embedding the scanner in a larger process with its own logging.
	Silent(on bool)
}

type logrusLogger struct {
	entry  *logrus.Logger
	silent bool
}

// New returns a Logger writing to os.Stderr at the given logrus level
// (logrus.InfoLevel is a reasonable default for callers that don't care).
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(os.Stderr)
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) Silent(on bool) {
	l.silent = on
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	if l.silent {
		return
	}
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Infof(format string, args ...interface{}) {
	if l.silent {
		return
	}
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Warnf(format string, args ...interface{}) {
	if l.silent {
		return
	}
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	if l.silent {
		return
	}
	l.entry.Errorf(format, args...)
}
