// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr. Unknown levels fall back to info;
// format "text" selects the human-readable formatter, anything else JSON.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(ParseLevel(level))
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func ParseLevel(level string) logrus.Level {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "silent":
		return logrus.PanicLevel
	case "":
		return logrus.InfoLevel
	}
	parsed, err := logrus.ParseLevel(normalized)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Nop discards everything. Used by tests and optional components.
func Nop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
