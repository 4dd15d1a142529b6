// Package logging provides the shared logrus setup every component in
// this daemon logs through, per SPEC_FULL.md §A5.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger for level (spec.md §6's log_level key),
// writing structured output to stderr the way a daemon under a
// supervisor is expected to.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Component returns a logger entry tagged with a "component" field, so
// every log line can be traced back to the package that emitted it.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
