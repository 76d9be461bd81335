// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New creates a logger at the given level. Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return log
}

// NewWithOutput creates a logger writing to w. Used by tests to capture or
// silence output.
func NewWithOutput(level string, w io.Writer) *logrus.Logger {
	log := New(level)
	log.SetOutput(w)
	return log
}
