package status

import (
	"errors"
	"fmt"
)

const (
	// Configuration indicates a missing or invalid synchronization name or flag
	Configuration Type = 1

	// Transport indicates that the update plan could not be received or deserialized
	Transport Type = 2

	// InvalidPlan indicates that the plan was received but is structurally invalid
	InvalidPlan Type = 3

	// TaskExecution indicates that a task raised an error while executing
	TaskExecution Type = 4

	// Relaunch indicates that the host application could not be restarted
	Relaunch Type = 5

	// Cleanup indicates that removing the backup/temp folders or persisting the log failed
	Cleanup Type = 6

	// Timeout indicates that a bounded wait expired
	Timeout Type = 7
)

// Type is a type of the Error
type Type int32

func (t Type) String() string {
	switch t {
	case Configuration:
		return "ConfigurationError"
	case Transport:
		return "TransportError"
	case InvalidPlan:
		return "InvalidPlanError"
	case TaskExecution:
		return "TaskExecutionError"
	case Relaunch:
		return "RelaunchError"
	case Cleanup:
		return "CleanupError"
	case Timeout:
		return "TimeoutError"
	default:
		return fmt.Sprintf("Type(%d)", int32(t))
	}
}

// Fatal reports whether an error of this type unwinds the whole run
func (t Type) Fatal() bool {
	switch t {
	case Configuration, Transport, InvalidPlan, Timeout:
		return true
	default:
		return false
	}
}

// Error is an updater error carrying its kind
type Error struct {
	ErrorType Type
	Message   string
	Err       error
}

// Type returns the Type of the error
func (e *Error) Type() Type {
	return e.ErrorType
}

// Error is an error string
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns Error(ErrorType, fmt.Sprintf(format, a...)).
func Errorf(errorType Type, format string, a ...interface{}) error {
	return &Error{
		ErrorType: errorType,
		Message:   fmt.Sprintf(format, a...),
	}
}

// Wrap returns an Error of the given type wrapping err. A nil err yields nil.
func Wrap(errorType Type, err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{
		ErrorType: errorType,
		Message:   fmt.Sprintf(format, a...),
		Err:       err,
	}
}

// FromError returns Error, true if the provided error is of type of Error. nil, false otherwise
func FromError(err error) (s *Error, ok bool) {
	if err == nil {
		return nil, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an Error of the given type anywhere in its chain,
// including Errors wrapped by an outer Error of another type
func Is(err error, errorType Type) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.ErrorType == errorType {
			return true
		}
		err = e.Err
	}
	return false
}
