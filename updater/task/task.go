// Package task defines the execution contract the updater relies on. Concrete task kinds
// live outside the core and are resolved from plan records through a Registry.
package task

import (
	"context"

	"github.com/netbirdio/netbird-updater/updater/plan"
)

// Task is an executable unit of change resolved from a plan.TaskRecord
type Task interface {
	// Execute applies the change. coldRun is true when the host application is not running.
	Execute(ctx context.Context, coldRun bool) (plan.Status, error)
	AddProgressSink(sink ProgressSink)
	RemoveProgressSink(sink ProgressSink)
}
