// Package display is the boundary between the updater and whatever shows its progress
// to the user. The updater only talks to the Display interface; concrete displays are
// registered by name and picked at startup.
package display

import (
	"fmt"

	"github.com/netbirdio/netbird-updater/updater/task"
)

// Display shows the offline run to the user. Every method must be safe to call from any
// goroutine.
type Display interface {
	task.ProgressSink

	// Show makes the display visible
	Show()
	// WriteLine prints a line. No arguments prints an empty line, one argument is printed
	// as is and more arguments are treated as a format string followed by its values.
	WriteLine(args ...any)
	// Close hides the display. Pending WaitForClose calls return.
	Close()
	// WaitForClose blocks until the user dismissed the display
	WaitForClose()
	// RunsInProcessUI reports whether the display drives a UI inside this process
	RunsInProcessUI() bool
}

// FormatLine renders WriteLine arguments
func FormatLine(args ...any) string {
	switch len(args) {
	case 0:
		return ""
	case 1:
		return fmt.Sprint(args[0])
	}

	format, ok := args[0].(string)
	if !ok {
		return fmt.Sprint(args...)
	}
	return fmt.Sprintf(format, args[1:]...)
}

// Nop discards everything. It is used when no display was requested.
type Nop struct{}

func (Nop) Show() {}
func (Nop) WriteLine(...any) {}
func (Nop) Close() {}
func (Nop) WaitForClose() {}
func (Nop) ReportProgress(task.Progress) {}
func (Nop) RunsInProcessUI() bool { return false }
