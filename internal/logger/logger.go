package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger at the given level. Unknown levels fall
// back to info. Output is discarded when ENV=test.
func NewLogger(level string) logrus.FieldLogger {
	logger := logrus.New()
	if os.Getenv("ENV") == "test" {
		logger.SetOutput(io.Discard)
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	jsonFormatter := logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyLevel: "level",
		},
	}
	logger.SetFormatter(&jsonFormatter)

	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
