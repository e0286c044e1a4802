package plan

import "fmt"

// Status is the execution status of a single task record
type Status int

const (
	NotStarted Status = iota
	RequiresAppRestart
	RequiresPrivilegedAppRestart
	Successful
	Failed
	Skipped
)

var statusNames = map[Status]string{
	NotStarted:                   "NotStarted",
	RequiresAppRestart:           "RequiresAppRestart",
	RequiresPrivilegedAppRestart: "RequiresPrivilegedAppRestart",
	Successful:                   "Successful",
	Failed:                       "Failed",
	Skipped:                      "Skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// RequiresOfflineRun reports whether the task was deferred by the host to the offline phase
func (s Status) RequiresOfflineRun() bool {
	return s == RequiresAppRestart || s == RequiresPrivilegedAppRestart
}

func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown execution status %d", int(s))
	}
	return []byte(name), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for k, v := range statusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown execution status %q", string(text))
}
