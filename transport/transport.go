package transport

import "context"

// DriverLink is the driver-side view of the simulated hardware link.
//
// ReadEvent and ReadAck are the only blocking operations; both honor
// context cancellation and return promptly after Close or Terminate so
// shutdown latency stays bounded.
//
// All methods are safe for concurrent use. Close is idempotent.
type DriverLink interface {
	// Open attaches to the link. It fails if the channels or shared
	// cells cannot be set up.
	Open(ctx context.Context) error

	// ReadEvent blocks for one framed event on the interrupt channel.
	ReadEvent(ctx context.Context) (Event, error)

	// SendCommand writes one command byte on the control channel,
	// notifying the hardware that the shared LED cell changed.
	SendCommand(ctx context.Context) error

	// ReadAck blocks for one acknowledgment byte on the ack channel.
	// The returned value is not interpreted beyond "received".
	ReadAck(ctx context.Context) (byte, error)

	// SetLED publishes the LED state to the shared cell.
	SetLED(on bool)

	// LED reads the LED state back from the shared cell.
	LED() bool

	// Terminate sets the shared termination flag. The flag is
	// monotonic: it can only transition from unset to set.
	Terminate()

	// Terminated reports whether the termination flag is set.
	Terminated() bool

	// Close releases the link. Blocked readers are woken with an
	// error. Calling Close more than once is a no-op.
	Close() error
}

// DeviceLink is the hardware-simulator-side view of the link.
//
// ReadCommand is the only blocking operation; it honors context
// cancellation and returns promptly after Close or Terminate.
//
// All methods are safe for concurrent use. Close is idempotent.
type DeviceLink interface {
	// Open attaches to the link, creating the channels and shared
	// cells if this side owns them.
	Open(ctx context.Context) error

	// WriteKey sends one literal key byte on the interrupt channel,
	// escaping it if it collides with a reserved value.
	WriteKey(ctx context.Context, b byte) error

	// WriteControl sends a non-key event sentinel on the interrupt
	// channel. It rejects EventKey.
	WriteControl(ctx context.Context, kind EventKind) error

	// ReadCommand blocks for one command byte on the control channel.
	ReadCommand(ctx context.Context) (byte, error)

	// WriteAck writes one acknowledgment byte on the ack channel.
	WriteAck(ctx context.Context) error

	// LED reads the LED state from the shared cell.
	LED() bool

	// Terminate sets the shared termination flag.
	Terminate()

	// Terminated reports whether the termination flag is set.
	Terminated() bool

	// Close releases the link. Calling Close more than once is a no-op.
	Close() error
}
