package formatter

import (
	"fmt"
	"path"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// SourceKey holds the file and line an entry was logged from
	SourceKey = "source"
	// RunKey holds the id of the update run an entry belongs to
	RunKey = "run"
	// StateKey holds the orchestrator state at the time the entry was logged
	StateKey = "state"

	defaultModulePath = "github.com/netbirdio/netbird-updater"
)

// ContextHook stamps entries with their source location and, once bound to a run, with
// the run id and the state the run is in
type ContextHook struct {
	repoDir string

	mu    sync.RWMutex
	runID string
	state func() string
}

// NewContextHook instantiate a new context hook
func NewContextHook() *ContextHook {
	return &ContextHook{repoDir: path.Base(modulePath()) + "/"}
}

// Bind attaches every following entry to runID. state is called on each entry and must
// not log.
func (hook *ContextHook) Bind(runID string, state func() string) {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	hook.runID = runID
	hook.state = state
}

// Levels set the supported levels for this hook
func (hook *ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire adds the source and run information to entry.Data. Fields set by the caller win.
func (hook *ContextHook) Fire(entry *logrus.Entry) error {
	if entry.Caller != nil {
		entry.Data[SourceKey] = hook.source(entry.Caller)
	}

	hook.mu.RLock()
	runID, state := hook.runID, hook.state
	hook.mu.RUnlock()

	if _, ok := entry.Data[RunKey]; !ok && runID != "" {
		entry.Data[RunKey] = runID
	}
	if _, ok := entry.Data[StateKey]; !ok && state != nil {
		entry.Data[StateKey] = state()
	}
	return nil
}

func (hook *ContextHook) source(frame *runtime.Frame) string {
	return fmt.Sprintf("%s:%d", hook.relativePath(frame.File), frame.Line)
}

// relativePath trims file down to its path inside the repository. Files outside of it
// keep their package directory.
func (hook *ContextHook) relativePath(file string) string {
	if i := strings.LastIndex(file, hook.repoDir); i >= 0 {
		return file[i+len(hook.repoDir):]
	}
	return path.Join(path.Base(path.Dir(file)), path.Base(file))
}

func modulePath() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
		return info.Main.Path
	}
	return defaultModulePath
}
