package task

import "sync"

// Progress is a progress notification emitted by a running task
type Progress struct {
	Description  string
	Message      string
	Percentage   int
	StillWorking bool
}

// ProgressSink receives progress notifications. Implementations must be safe to call
// from any goroutine and comparable, since sinks are detached by identity.
type ProgressSink interface {
	ReportProgress(p Progress)
}

// Notifier keeps the subscribed sinks of a task. Embed it to satisfy the
// subscription half of the Task interface.
type Notifier struct {
	mu    sync.Mutex
	sinks []ProgressSink
}

func (n *Notifier) AddProgressSink(sink ProgressSink) {
	if sink == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, sink)
}

// RemoveProgressSink removes the most recent subscription of sink
func (n *Notifier) RemoveProgressSink(sink ProgressSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sinks) - 1; i >= 0; i-- {
		if n.sinks[i] == sink {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of attached sinks
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sinks)
}

// Notify delivers p to every subscribed sink
func (n *Notifier) Notify(p Progress) {
	n.mu.Lock()
	sinks := make([]ProgressSink, len(n.sinks))
	copy(sinks, n.sinks)
	n.mu.Unlock()

	for _, s := range sinks {
		s.ReportProgress(p)
	}
}
