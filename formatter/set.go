package formatter

import "github.com/sirupsen/logrus"

// SetTextFormatter set the formatter for given logger and attaches the hooks. A context
// hook is added unless hooks already carries one.
func SetTextFormatter(logger *logrus.Logger, hooks ...logrus.Hook) {
	logger.Formatter = NewTextFormatter()
	logger.ReportCaller = true

	hasContext := false
	for _, h := range hooks {
		if _, ok := h.(*ContextHook); ok {
			hasContext = true
			break
		}
	}
	if !hasContext {
		logger.AddHook(NewContextHook())
	}

	for _, h := range hooks {
		logger.AddHook(h)
	}
}
