package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process logger handed to every component.
type Logger = *logrus.Logger

type Fields = logrus.Fields

// NewLogger builds a logger for the given level and environment. Development
// gets human-readable text, everything else JSON.
func NewLogger(level, env string) *logrus.Logger {
	logger := logrus.New()
	if strings.EqualFold(env, "development") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(ParseLevel(level))
	return logger
}

// NewLoggerWithService tags every entry with the service name.
func NewLoggerWithService(service, level, env string) *logrus.Entry {
	return NewLogger(level, env).WithField("service", service)
}

func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard is for tests and tools that must stay quiet.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
