package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func Init(verbose bool) {
	log = logrus.New()

	log.SetOutput(os.Stdout)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// InitWithConfig configures the logger from the log section of the config
// file: level, format (json or text), output (stdout, stderr or file).
func InitWithConfig(level, format, output, filePath string) error {
	log = logrus.New()

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsedLevel)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	}

	var out io.Writer
	switch output {
	case "stderr":
		out = os.Stderr
	case "file":
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", filePath, err)
		}
		out = f
	default:
		out = os.Stdout
	}
	log.SetOutput(out)

	return nil
}

func GetLogger() *logrus.Logger {
	if log == nil {
		Init(false)
	}
	return log
}

func Debug(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Info(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

func Warn(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

func Error(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
