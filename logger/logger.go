// Package logger builds the process logger.
package logger

import (
	"io"
	"os"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const timestampFormat = "2006-01-02 15:04:05"

// New creates a logger writing to stdout and, if configured, to a log file as well.
//
// Parameters:
// - cfg: the logging section of the configuration.
//
// Returns:
// - *logrus.Logger: the logger.
// - func(): closes the log file, never nil.
// - error: ErrInvalidConfig for an unknown level, or the file open error.
func New(cfg config.LoggingConfig) (*logrus.Logger, func(), error) {
	return newLogger(cfg, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func newLogger(cfg config.LoggingConfig, out io.Writer, tty bool) (*logrus.Logger, func(), error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, func() {}, errors.Wrapf(commonerrors.ErrInvalidConfig, "logging.level %q", cfg.Level)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
			ForceColors:     tty && cfg.File == "",
			DisableColors:   !tty || cfg.File != "",
		})
	}

	closer := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, errors.Wrapf(err, "failed to open log file %s", cfg.File)
		}
		out = io.MultiWriter(out, f)
		closer = func() { _ = f.Close() }
	}
	logger.SetOutput(out)

	return logger, closer, nil
}
