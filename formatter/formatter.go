package formatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// shortRunID is how many characters of the run id are printed
const shortRunID = 8

// TextFormatter renders entries as single lines:
//
//	2024-03-01T10:30:00Z WARN <1a2b3c4d CleaningUp> orchestrator/orchestrator.go:42: message [key: value]
type TextFormatter struct {
	timestampFormat string
	levelDesc       []string
}

// NewTextFormatter create new TextFormatter instance
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		levelDesc:       []string{"PANC", "FATL", "ERRO", "WARN", "INFO", "DEBG", "TRAC"},
		timestampFormat: time.RFC3339,
	}
}

// Format renders a single log entry
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Time.Format(f.timestampFormat))

	if level := f.levelName(entry.Level); level != "" {
		b.WriteByte(' ')
		b.WriteString(level)
	}

	if run := runTag(entry.Data); run != "" {
		fmt.Fprintf(&b, " <%s>", run)
	}

	if src, ok := entry.Data[SourceKey]; ok {
		fmt.Fprintf(&b, " %v:", src)
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if fields := extraFields(entry.Data); fields != "" {
		fmt.Fprintf(&b, " [%s]", fields)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *TextFormatter) levelName(level logrus.Level) string {
	if int(level) >= len(f.levelDesc) {
		return ""
	}
	return f.levelDesc[level]
}

// runTag joins the shortened run id and the state, whichever is present
func runTag(data logrus.Fields) string {
	var parts []string
	if run, ok := data[RunKey]; ok {
		id := fmt.Sprint(run)
		if len(id) > shortRunID {
			id = id[:shortRunID]
		}
		parts = append(parts, id)
	}
	if state, ok := data[StateKey]; ok {
		parts = append(parts, fmt.Sprint(state))
	}
	return strings.Join(parts, " ")
}

func extraFields(data logrus.Fields) string {
	fields := make([]string, 0, len(data))
	for k, v := range data {
		switch k {
		case SourceKey, RunKey, StateKey, SkipDisplayKey:
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}
