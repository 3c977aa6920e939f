package pkg

import "errors"

// Keyboard stack errors.
var (
	// ErrClosed indicates the transport link has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrEndOfStream indicates the end-of-stream sentinel was received.
	ErrEndOfStream = errors.New("end of input stream")

	// ErrTerminated indicates the termination signal has been set.
	ErrTerminated = errors.New("termination requested")

	// ErrShortRead indicates a zero-length read on a channel.
	ErrShortRead = errors.New("short read")

	// ErrProtocol indicates an unexpected byte in the wire protocol.
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timeout")

	// ErrCancelled indicates a cancelled operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrAlreadyRunning indicates the keyboard is already open.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the keyboard is not open.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTransportSetup indicates channel or shared-cell setup failed.
	ErrTransportSetup = errors.New("transport setup failed")
)

// CompletionStatus represents the completion status of a request.
type CompletionStatus int

// Completion status values.
const (
	CompletionSuccess     CompletionStatus = iota // Operation completed successfully
	CompletionError                               // Operation failed with error
	CompletionEndOfStream                         // End-of-stream sentinel observed
	CompletionTerminated                          // Termination signal observed
	CompletionCancelled                           // Operation was cancelled
)

// String returns a string representation of the completion status.
func (s CompletionStatus) String() string {
	switch s {
	case CompletionSuccess:
		return "success"
	case CompletionError:
		return "error"
	case CompletionEndOfStream:
		return "end-of-stream"
	case CompletionTerminated:
		return "terminated"
	case CompletionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the completion status.
func (s CompletionStatus) Error() error {
	switch s {
	case CompletionSuccess:
		return nil
	case CompletionEndOfStream:
		return ErrEndOfStream
	case CompletionTerminated:
		return ErrTerminated
	case CompletionCancelled:
		return ErrCancelled
	default:
		return ErrProtocol
	}
}

// Terminal reports whether the status retires the owning request
// rather than allowing resubmission.
func (s CompletionStatus) Terminal() bool {
	return s != CompletionSuccess
}
