package dronectl

import (
	"errors"
	"fmt"
)

// Common errors returned by controller operations
var (
	// ErrNoPatterns indicates an empty pattern set
	ErrNoPatterns = errors.New("dronectl: empty pattern set")

	// ErrEmptyPattern indicates a pattern set containing an empty string
	ErrEmptyPattern = errors.New("dronectl: empty pattern")

	// ErrBadPattern indicates a pattern that cannot be embedded in the
	// remote reap routine (newline or NUL)
	ErrBadPattern = errors.New("dronectl: pattern contains newline or NUL")

	// ErrMalformedReport indicates the remote reap routine produced output
	// that does not follow the line protocol
	ErrMalformedReport = errors.New("dronectl: malformed reap output")

	// ErrNoEntrypoint indicates the launcher was given no init script path
	ErrNoEntrypoint = errors.New("dronectl: empty entrypoint")
)

// Operation identifies the remote operation being attempted
type Operation int

const (
	// OpUnknown represents an unspecified operation
	OpUnknown Operation = iota
	// OpConnect establishes the SSH session
	OpConnect
	// OpUpload places the reap routine on the remote host
	OpUpload
	// OpExec runs a command on the remote host
	OpExec
	// OpStop is the discover-and-kill operation
	OpStop
	// OpStart is the detached launch operation
	OpStart
)

// String returns the operation name
func (o Operation) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpUpload:
		return "upload"
	case OpExec:
		return "exec"
	case OpStop:
		return "stop"
	case OpStart:
		return "start"
	default:
		return "unknown"
	}
}

// TransportError represents a failure to establish the channel, place the
// payload, or dispatch a remote command. Per-PID kill rejections are not
// transport errors; they are recorded in the StopReport.
type TransportError struct {
	// Op is the operation that failed
	Op Operation
	// Host is the remote host involved
	Host string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *TransportError) Error() string {
	return fmt.Sprintf("dronectl %s %q: %v", e.Op.String(), e.Host, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// MultiError collects per-item failures, such as the rejected kill
// signals a StopReport aggregates, without aborting the surrounding
// operation.
type MultiError struct {
	// Errors holds every failure collected so far
	Errors []error
}

// Error summarizes the collected failures
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add records err unless it is nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err reduces the collection to nil when nothing failed, or to the
// MultiError itself otherwise
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
