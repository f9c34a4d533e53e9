package daemon

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures the standard logrus logger: text to stderr and,
// when a file is configured, a rotating copy on disk. The returned closer
// releases the log file.
func SetupLogging(cfg LoggingConfig, verbose bool) (io.Closer, error) {
	level, levelErr := logrus.ParseLevel(cfg.Level)
	if levelErr != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var closer io.Closer = nopCloser{}
	if cfg.File == "" {
		logrus.SetOutput(os.Stderr)
	} else {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(1, cfg.MaxSizeMB),
			MaxBackups: max(0, cfg.MaxFiles),
		}
		logrus.SetOutput(io.MultiWriter(os.Stderr, file))
		closer = file
	}

	if levelErr != nil {
		logrus.WithError(levelErr).Warn("invalid log level, using info")
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
