package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/netbirdio/netbird-updater/formatter"
)

// ConsoleLog is the log path that selects stderr instead of a file
const ConsoleLog = "console"

// NewLogger builds a logger with the given level writing to logPath. An empty path or
// ConsoleLog writes to stderr, anything else is a rotated file. A formatter.ContextHook
// passed in hooks is used instead of a fresh one.
func NewLogger(logLevel string, logPath string, hooks ...log.Hook) (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed parsing log-level %s: %w", logLevel, err)
	}

	logger := log.New()
	logger.SetOutput(logWriter(logPath))
	formatter.SetTextFormatter(logger, hooks...)
	logger.SetLevel(level)
	return logger, nil
}

func logWriter(logPath string) io.Writer {
	if logPath == "" || logPath == ConsoleLog {
		return os.Stderr
	}

	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}
