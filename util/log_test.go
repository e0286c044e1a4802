package util

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

type countingHook struct {
	fired int
}

func (h *countingHook) Levels() []log.Level { return log.AllLevels }

func (h *countingHook) Fire(*log.Entry) error {
	h.fired++
	return nil
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger("loud", ConsoleLog)
	assert.Error(t, err)
}

func TestNewLoggerConsole(t *testing.T) {
	logger, err := NewLogger("debug", ConsoleLog)
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, logger.Out)
	assert.Equal(t, log.DebugLevel, logger.Level)
	assert.True(t, logger.ReportCaller)
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updater.log")
	hook := &countingHook{}

	logger, err := NewLogger("info", path, hook)
	require.NoError(t, err)

	rotated, ok := logger.Out.(*lumberjack.Logger)
	require.True(t, ok)
	defer rotated.Close()

	logger.Info("written to file")
	logger.Debug("filtered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO")
	assert.Contains(t, string(data), "written to file")
	assert.NotContains(t, string(data), "filtered")
	assert.Equal(t, 1, hook.fired)
}
