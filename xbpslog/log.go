// Package xbpslog centralizes structured logging and the user-visible
// progress/state callback described in spec.md §7. A handle carries one
// *Logger and one EventSink for its whole lifetime.
package xbpslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger; WithPkg scopes an entry to one
// package's pkgname field.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing structured text to stderr at Info level,
// matching the teacher's plain stderr diagnostics (holo-build/main.go
// showError) but with fields instead of ad hoc Sprintf prefixes.
func New() *Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{Logger: l}
}

// WithPkg returns an entry scoped to one package, the field set nearly
// every resolver/unpack/commit log line wants.
func (l *Logger) WithPkg(pkgname string) *logrus.Entry {
	return l.WithField("pkgname", pkgname)
}
