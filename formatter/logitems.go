package formatter

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/plan"
)

// LogItemsHook records every entry as a plan.LogItem so the offline run can hand its log
// back to the application together with the plan
type LogItemsHook struct {
	mu    sync.Mutex
	items []plan.LogItem
}

// NewLogItemsHook instantiate a new log items hook
func NewLogItemsHook() *LogItemsHook {
	return &LogItemsHook{}
}

// Levels set the supported levels for this hook
func (hook *LogItemsHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel}
}

// Fire appends the entry to the collected items
func (hook *LogItemsHook) Fire(entry *logrus.Entry) error {
	item := plan.LogItem{
		Severity: severity(entry.Level),
		Time:     entry.Time,
		Message:  entry.Message,
	}

	hook.mu.Lock()
	hook.items = append(hook.items, item)
	hook.mu.Unlock()
	return nil
}

// Items returns a copy of the collected items in emission order
func (hook *LogItemsHook) Items() []plan.LogItem {
	hook.mu.Lock()
	defer hook.mu.Unlock()

	items := make([]plan.LogItem, len(hook.items))
	copy(items, hook.items)
	return items
}

func severity(level logrus.Level) plan.Severity {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return plan.SeverityDebug
	case logrus.InfoLevel:
		return plan.SeverityInfo
	case logrus.WarnLevel:
		return plan.SeverityWarning
	default:
		return plan.SeverityError
	}
}
