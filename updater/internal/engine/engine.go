package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
	"github.com/netbirdio/netbird-updater/updater/task"
)

// Resolver turns a plan record into an executable task
type Resolver interface {
	Resolve(record *plan.TaskRecord) (task.Task, error)
}

// Engine executes the deferred part of an update plan
type Engine struct {
	resolver Resolver
	log      *log.Entry
}

func New(resolver Resolver, logger *log.Entry) *Engine {
	return &Engine{
		resolver: resolver,
		log:      logger,
	}
}

// Run executes the records in order. Only records waiting for an application restart are
// executed, the rest pass through untouched. The first executed record that does not end
// Successful stops the run. It returns whether every executed record succeeded together
// with the same, mutated, slice.
func (e *Engine) Run(ctx context.Context, tasks []*plan.TaskRecord, sink task.ProgressSink) (bool, []*plan.TaskRecord) {
	allSucceeded := true

	for i, record := range tasks {
		if record == nil {
			continue
		}

		e.log.Infof("task %q: %s", record.Description, record.ExecutionStatus)
		if !record.ExecutionStatus.RequiresOfflineRun() {
			e.log.Infof("skipping task %d", i)
			continue
		}

		e.log.Infof("executing task %d", i)
		record.ExecutionStatus = e.execute(ctx, record, sink)

		if record.ExecutionStatus == plan.Successful {
			continue
		}

		e.log.Errorf("task %q execution failed, %d remaining task(s) left untouched", record.Description, len(tasks)-i-1)
		allSucceeded = false
		break
	}

	return allSucceeded, tasks
}

// execute resolves and runs a single record. Resolving decodes the record payload, so a
// panic there is recovered the same way as one raised by the task itself.
func (e *Engine) execute(ctx context.Context, record *plan.TaskRecord, sink task.ProgressSink) (result plan.Status) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(status.Errorf(status.TaskExecution, "task %q panicked: %v", record.Description, r))
			result = plan.Failed
		}
	}()

	t, err := e.resolver.Resolve(record)
	if err != nil {
		e.log.Error(status.Wrap(status.TaskExecution, err, "resolve task %q", record.Description))
		return plan.Failed
	}

	if sink != nil {
		t.AddProgressSink(sink)
		defer t.RemoveProgressSink(sink)
	}

	st, err := t.Execute(ctx, true)
	if err != nil {
		e.log.Error(status.Wrap(status.TaskExecution, err, "task %q", record.Description))
		return plan.Failed
	}

	if st != plan.Successful {
		e.log.Warnf("task %q finished with status %s", record.Description, st)
	}
	return st
}
