package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a new configured logger. format "json" switches to
// the JSON formatter; anything else uses text with full timestamps.
func NewLogger(level, format string) *logrus.Logger {
	return NewLoggerWithOutput(os.Stdout, level, format)
}

// NewLoggerWithOutput is NewLogger writing to w
func NewLoggerWithOutput(w io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}

// NewTestLogger returns a logger that discards everything
func NewTestLogger() *logrus.Logger {
	return NewLoggerWithOutput(io.Discard, "panic", "text")
}
