package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/task"
)

type behaviour int

const (
	succeed behaviour = iota
	fail
	raise
	panics
	returnStatus
)

type fakeTask struct {
	task.Notifier
	behaviour behaviour
	status    plan.Status
	executed  *[]string
	name      string
	sinksSeen int
}

func (f *fakeTask) Execute(context.Context, bool) (plan.Status, error) {
	*f.executed = append(*f.executed, f.name)
	f.sinksSeen = f.Subscribers()
	f.Notify(task.Progress{Description: f.name, Percentage: 100})

	switch f.behaviour {
	case fail:
		return plan.Failed, nil
	case raise:
		return plan.Successful, errors.New("disk full")
	case panics:
		panic("unexpected")
	case returnStatus:
		return f.status, nil
	default:
		return plan.Successful, nil
	}
}

type fakeResolver struct {
	tasks    map[string]*fakeTask
	executed []string
}

func newResolver() *fakeResolver {
	return &fakeResolver{tasks: make(map[string]*fakeTask)}
}

func (r *fakeResolver) add(name string, b behaviour) *plan.TaskRecord {
	r.tasks[name] = &fakeTask{behaviour: b, executed: &r.executed, name: name}
	return &plan.TaskRecord{Description: name, Kind: name, ExecutionStatus: plan.RequiresAppRestart}
}

func (r *fakeResolver) Resolve(record *plan.TaskRecord) (task.Task, error) {
	t, ok := r.tasks[record.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", record.Kind)
	}
	return t, nil
}

type sink struct {
	received []task.Progress
}

func (s *sink) ReportProgress(p task.Progress) {
	s.received = append(s.received, p)
}

func newEngine(r Resolver) *Engine {
	return New(r, log.NewEntry(log.StandardLogger()))
}

func TestRunAllSucceed(t *testing.T) {
	r := newResolver()
	tasks := []*plan.TaskRecord{r.add("one", succeed), r.add("two", succeed), r.add("three", succeed)}
	s := &sink{}

	ok, out := newEngine(r).Run(context.Background(), tasks, s)

	require.True(t, ok)
	require.Len(t, out, 3)
	for _, record := range out {
		assert.Equal(t, plan.Successful, record.ExecutionStatus)
	}
	assert.Equal(t, []string{"one", "two", "three"}, r.executed)
	assert.Len(t, s.received, 3)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	testCases := []struct {
		name      string
		behaviour behaviour
	}{
		{name: "task raises", behaviour: raise},
		{name: "task reports failed", behaviour: fail},
		{name: "task panics", behaviour: panics},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResolver()
			tasks := []*plan.TaskRecord{r.add("one", succeed), r.add("two", tc.behaviour), r.add("three", succeed)}
			tasks[2].ExecutionStatus = plan.NotStarted
			tasks = append(tasks, r.add("four", succeed))

			ok, out := newEngine(r).Run(context.Background(), tasks, &sink{})

			require.False(t, ok)
			assert.Equal(t, plan.Successful, out[0].ExecutionStatus)
			assert.Equal(t, plan.Failed, out[1].ExecutionStatus)
			assert.Equal(t, plan.NotStarted, out[2].ExecutionStatus)
			assert.Equal(t, plan.RequiresAppRestart, out[3].ExecutionStatus, "tasks after a failure are left untouched")
			assert.Equal(t, []string{"one", "two"}, r.executed)
		})
	}
}

func TestRunNonSuccessfulStatusStops(t *testing.T) {
	r := newResolver()
	first := r.add("one", returnStatus)
	r.tasks["one"].status = plan.Skipped
	tasks := []*plan.TaskRecord{first, r.add("two", succeed)}

	ok, out := newEngine(r).Run(context.Background(), tasks, nil)

	assert.False(t, ok)
	assert.Equal(t, plan.Skipped, out[0].ExecutionStatus)
	assert.Equal(t, plan.RequiresAppRestart, out[1].ExecutionStatus)
}

func TestRunPassesThroughResolvedTasks(t *testing.T) {
	r := newResolver()
	tasks := []*plan.TaskRecord{
		{Description: "a", Kind: "a", ExecutionStatus: plan.Successful},
		{Description: "b", Kind: "b", ExecutionStatus: plan.NotStarted},
		{Description: "c", Kind: "c", ExecutionStatus: plan.Skipped},
		{Description: "d", Kind: "d", ExecutionStatus: plan.Failed},
	}

	ok, out := newEngine(r).Run(context.Background(), tasks, &sink{})

	assert.True(t, ok)
	assert.Empty(t, r.executed)
	assert.Equal(t, plan.Successful, out[0].ExecutionStatus)
	assert.Equal(t, plan.NotStarted, out[1].ExecutionStatus)
	assert.Equal(t, plan.Skipped, out[2].ExecutionStatus)
	assert.Equal(t, plan.Failed, out[3].ExecutionStatus)
}

func TestRunUnresolvableTaskFails(t *testing.T) {
	r := newResolver()
	tasks := []*plan.TaskRecord{
		{Description: "unknown", Kind: "unknown", ExecutionStatus: plan.RequiresPrivilegedAppRestart},
		r.add("two", succeed),
	}

	ok, out := newEngine(r).Run(context.Background(), tasks, nil)

	assert.False(t, ok)
	assert.Equal(t, plan.Failed, out[0].ExecutionStatus)
	assert.Equal(t, plan.RequiresAppRestart, out[1].ExecutionStatus)
	assert.Empty(t, r.executed)
}

func TestRunDetachesSinkEvenOnPanic(t *testing.T) {
	r := newResolver()
	tasks := []*plan.TaskRecord{r.add("one", succeed), r.add("two", panics)}

	_, _ = newEngine(r).Run(context.Background(), tasks, &sink{})

	assert.Equal(t, 1, r.tasks["one"].sinksSeen, "sink attached during execution")
	assert.Equal(t, 0, r.tasks["one"].Subscribers())
	assert.Equal(t, 0, r.tasks["two"].Subscribers())
}

func TestRunRecoversPanickingFactory(t *testing.T) {
	registry := task.NewRegistry()
	require.NoError(t, registry.Register("broken", func(json.RawMessage) (task.Task, error) {
		var counts map[string]int
		counts["payload"]++
		return nil, nil
	}))
	tasks := []*plan.TaskRecord{
		{Description: "broken payload", Kind: "broken", ExecutionStatus: plan.RequiresAppRestart},
		{Description: "after", Kind: "broken", ExecutionStatus: plan.RequiresAppRestart},
	}

	var ok bool
	var out []*plan.TaskRecord
	require.NotPanics(t, func() {
		ok, out = newEngine(registry).Run(context.Background(), tasks, &sink{})
	})

	assert.False(t, ok)
	assert.Equal(t, plan.Failed, out[0].ExecutionStatus)
	assert.Equal(t, plan.RequiresAppRestart, out[1].ExecutionStatus)
}
