// Package logging provides the thin, package-prefixed logger every
// subsystem of the core takes as a constructor argument. It follows the
// teacher's plain log.Printf/log.New idiom rather than pulling in a
// structured logging library: the storage layer it is grounded on never
// needed anything heavier than a prefixed stdlib logger.
package logging

import (
	"io"
	"log"
)

// Logger is a minimal interface so callers can pass a *log.Logger, a
// logging.New() wrapper, or a test double.
type Logger interface {
	Printf(format string, v ...any)
}

// New returns a *log.Logger writing to log.Default()'s output with the
// given prefix (e.g. "[graph] "). Pass io.Discard as the prefix's
// silencer by calling Silent instead.
func New(prefix string) *log.Logger {
	return log.New(log.Writer(), prefix, log.Default().Flags())
}

// Silent returns a logger that discards everything, for callers that
// want the core quiet (tests, embedding applications with their own
// logging).
func Silent() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDefault returns l if non-nil, else New(prefix).
func OrDefault(l *log.Logger, prefix string) *log.Logger {
	if l != nil {
		return l
	}
	return New(prefix)
}
