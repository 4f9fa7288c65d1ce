package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/muratoffalex/pablos/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

type logrusLogger struct {
	logger logrus.Ext1FieldLogger
}

// NewLogrusLogger builds the process logger. Output goes to stderr, and is
// duplicated into logging.file_path when write_in_file is set.
func NewLogrusLogger(cfg config.LoggingConfig) Logger {
	return newLogrusLogger(cfg, os.Stderr)
}

func newLogrusLogger(cfg config.LoggingConfig, out io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(out)

	switch cfg.Format() {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			DisableQuote:    true,
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level())
	if err != nil {
		l.WithField("log_level", cfg.Level()).Warn("Log level not found. Fallback to 'info'")
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.WriteInFile && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.WithError(err).WithField("path", cfg.FilePath).Warn("Failed to open log file, logging to stderr only")
		} else {
			l.SetOutput(io.MultiWriter(out, file))
		}
	}

	return &logrusLogger{logger: l}
}

// Discard returns a logger that drops every entry. Used by CLI subcommands
// whose output must stay machine readable.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{logger: l}
}

func (l *logrusLogger) Trace(args ...any) {
	l.logger.Trace(args...)
}

func (l *logrusLogger) Debug(args ...any) {
	l.logger.Debug(args...)
}

func (l *logrusLogger) Info(args ...any) {
	l.logger.Info(args...)
}

func (l *logrusLogger) Warn(args ...any) {
	l.logger.Warn(args...)
}

func (l *logrusLogger) Error(args ...any) {
	l.logger.Error(args...)
}

func (l *logrusLogger) Fatal(args ...any) {
	l.logger.Fatal(args...)
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{logger: l.logger.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{logger: l.logger.WithField(key, value)}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{logger: l.logger.WithError(err)}
}
