package formatter

import "github.com/sirupsen/logrus"

// SkipDisplayKey marks an entry the caller already rendered on the display itself
const SkipDisplayKey = "skip_display"

// LineWriter is the part of a display the log is mirrored to
type LineWriter interface {
	WriteLine(args ...any)
}

// DisplayHook mirrors informational and more severe entries to a display so the user sees
// the same trail that goes into the log
type DisplayHook struct {
	writer LineWriter
}

// NewDisplayHook instantiate a hook writing to w
func NewDisplayHook(w LineWriter) *DisplayHook {
	return &DisplayHook{writer: w}
}

// Levels set the supported levels for this hook
func (hook *DisplayHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

// Fire writes the entry message as one display line
func (hook *DisplayHook) Fire(entry *logrus.Entry) error {
	if skip, ok := entry.Data[SkipDisplayKey].(bool); ok && skip {
		return nil
	}
	hook.writer.WriteLine(entry.Message)
	return nil
}
