package driver

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softkbd/pkg"
)

// EndpointKind identifies the closed set of endpoints a request can be
// bound to.
type EndpointKind int

// Endpoint kinds.
const (
	EndpointInterrupt EndpointKind = iota // Unsolicited input events
	EndpointControl                       // Command/ack exchanges
)

// String returns a human-readable endpoint kind name.
func (k EndpointKind) String() string {
	switch k {
	case EndpointInterrupt:
		return "interrupt"
	case EndpointControl:
		return "control"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// RequestState is the lifecycle state of a request.
type RequestState int32

// Request lifecycle states.
const (
	RequestIdle      RequestState = iota // Not submitted
	RequestSubmitted                     // Worker active, transfer pending
	RequestCompleted                     // Last transfer finished
)

// String returns a human-readable request state name.
func (s RequestState) String() string {
	switch s {
	case RequestIdle:
		return "idle"
	case RequestSubmitted:
		return "submitted"
	case RequestCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Request is the unit of asynchronous work bound to one endpoint. It
// carries a single-byte buffer holding the payload of the most recent
// transfer and an active flag guaranteeing at most one worker per
// request.
type Request struct {
	kind EndpointKind

	state  atomic.Int32
	active atomic.Bool

	// buffer holds the last transferred byte. Written only by the
	// owning worker between Submitted and Completed.
	buffer byte

	// status records why the request retired.
	status atomic.Int32
}

// NewRequest creates an idle request bound to the given endpoint.
func NewRequest(kind EndpointKind) *Request {
	return &Request{kind: kind}
}

// Kind returns the owning endpoint kind.
func (r *Request) Kind() EndpointKind {
	return r.kind
}

// State returns the current lifecycle state.
func (r *Request) State() RequestState {
	return RequestState(r.state.Load())
}

// Active reports whether a worker currently owns the request.
func (r *Request) Active() bool {
	return r.active.Load()
}

// Buffer returns the payload byte of the most recent transfer.
func (r *Request) Buffer() byte {
	return r.buffer
}

// Status returns the completion status recorded when the request
// retired, or CompletionSuccess while it is still cycling.
func (r *Request) Status() pkg.CompletionStatus {
	return pkg.CompletionStatus(r.status.Load())
}

// acquire atomically claims the request for submission. It fails when a
// worker is already active, which makes duplicate submission a no-op.
func (r *Request) acquire() bool {
	return r.active.CompareAndSwap(false, true)
}

// begin marks the start of one transfer cycle.
func (r *Request) begin() {
	r.state.Store(int32(RequestSubmitted))
}

// complete records the transferred byte and marks the cycle finished.
func (r *Request) complete(b byte) {
	r.buffer = b
	r.state.Store(int32(RequestCompleted))
}

// retire releases the request with a final status. The request returns
// to Idle and may be submitted again.
func (r *Request) retire(status pkg.CompletionStatus) {
	r.status.Store(int32(status))
	r.state.Store(int32(RequestIdle))
	r.active.Store(false)
}
