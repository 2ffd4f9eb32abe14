package main

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// configureLogger creates a logger writing to w at the configured level.
// The level has already been validated by config.Validate.
func configureLogger(level string, w io.Writer) *logrus.Logger {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
