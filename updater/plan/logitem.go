package plan

import (
	"fmt"
	"strings"
	"time"
)

// Severity of a log item carried with the plan
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// LogItem is one entry of the log shared between the host and the updater
type LogItem struct {
	Severity Severity  `json:"severity"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
}

// FormatLogItems renders the items as plain text, one line per item, in order
func FormatLogItems(items []LogItem) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "%s %-7s %s\n", item.Time.Format(time.RFC3339), strings.ToUpper(string(item.Severity)), item.Message)
	}
	return sb.String()
}
