package cli

import (
	"io"
	"os"

	logging "github.com/op/go-logging"
)

const (
	logModule = "vaultkit"
	logFormat = `%{time:15:04:05.000} %{level:.4s} %{shortfile} %{message}`
)

// Logger can be used to log information.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	EnableDebug()
}

type logger struct {
	*logging.Logger
	backend logging.LeveledBackend
}

// NewLogger returns a logger writing to stderr at level INFO.
func NewLogger() Logger {
	return NewLoggerTo(os.Stderr)
}

// NewLoggerTo returns a logger writing to w at level INFO.
func NewLoggerTo(w io.Writer) Logger {
	formatter := logging.MustStringFormatter(logFormat)
	backend := logging.AddModuleLevel(
		logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), formatter),
	)
	backend.SetLevel(logging.INFO, logModule)

	l := logging.MustGetLogger(logModule)
	l.SetBackend(backend)

	return &logger{
		Logger:  l,
		backend: backend,
	}
}

// EnableDebug sets the log level to DEBUG.
func (l *logger) EnableDebug() {
	l.backend.SetLevel(logging.DEBUG, logModule)
	l.Debugf("log level set to debug")
}
