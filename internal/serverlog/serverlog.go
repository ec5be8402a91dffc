// Package serverlog wires up the process-wide logging backend: structured
// module loggers via go-logging, writing to stderr and to a rotated log
// file via lumberjack.
package serverlog

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/op/go-logging.v1"
)

var format = logging.MustStringFormatter(
	`%{time:2006-01-02T15:04:05.000Z07:00} %{level:.4s} [%{module}] %{message}`,
)

// Init configures the logging backends: a rotated file at logPath and
// stderr, both formatted identically. Call once during process startup.
func Init(logPath string, maxSizeMB, maxBackups, maxAgeDays int) {
	backends := []logging.Backend{
		logging.NewLogBackend(os.Stderr, "", 0),
	}

	if logPath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		backends = append(backends, logging.NewLogBackend(fileWriter, "", 0))
	}

	formatted := make([]logging.Backend, len(backends))
	for i, b := range backends {
		formatted[i] = logging.NewBackendFormatter(b, format)
	}
	logging.SetBackend(formatted...)
}

// New returns a module-scoped logger, e.g. serverlog.New("session").
func New(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}
