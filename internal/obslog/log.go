// Package obslog configures the process-wide logrus logger the way
// Synnergy's health logger and CLI commands do: level parsed from a
// string, optional JSON formatting, component loggers built with
// WithField rather than ad-hoc prefixes.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger from a level string ("debug", "info", ...)
// and a JSON-output toggle. An unparsable level falls back to Info and is
// reported through the returned logger itself once it exists.
func New(level string, jsonOutput bool) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(os.Stdout)

	if jsonOutput {
		lg.SetFormatter(&logrus.JSONFormatter{})
	} else {
		lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lg.SetLevel(logrus.InfoLevel)
		lg.WithField("requested_level", level).Warn("unrecognised log level, defaulting to info")
		return lg
	}
	lg.SetLevel(lv)
	return lg
}

// Component returns an entry scoped to a named subsystem, used throughout
// core/* so every log line carries its origin without string prefixes.
func Component(lg *logrus.Logger, name string) *logrus.Entry {
	return lg.WithField("component", name)
}
