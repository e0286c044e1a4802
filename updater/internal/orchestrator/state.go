package orchestrator

// State of an offline run. A run passes through the states once, in declaration order,
// skipping the ones that do not apply.
type State int

const (
	Idle State = iota
	AwaitingHostExit
	FetchingPlan
	ExecutingTasks
	Succeeded
	Failed
	Relaunching
	CleaningUp
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingHostExit:
		return "AwaitingHostExit"
	case FetchingPlan:
		return "FetchingPlan"
	case ExecutingTasks:
		return "ExecutingTasks"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Relaunching:
		return "Relaunching"
	case CleaningUp:
		return "CleaningUp"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Transition is a recorded state change
type Transition struct {
	From State
	To   State
}
