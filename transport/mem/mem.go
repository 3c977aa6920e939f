package mem

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
)

// Channel capacities.
const (
	eventBufferSize = 64 // Interrupt channel poll buffer
	controlSlots    = 1  // At most one outstanding command/ack pair
)

// link holds the state shared by the two ends of an in-memory transport.
type link struct {
	events  chan byte // Framed interrupt channel (device → driver)
	command chan byte // Control channel (driver → device)
	ack     chan byte // Ack channel (device → driver)

	led  atomic.Bool // Shared LED cell
	term atomic.Bool // Shared termination flag

	termCh   chan struct{} // Closed once when term is set
	termOnce sync.Once

	closed    chan struct{} // Closed once when either end closes
	closeOnce sync.Once
}

// New returns the connected driver and device ends of an in-memory link.
func New() (*Driver, *Device) {
	l := &link{
		events:  make(chan byte, eventBufferSize),
		command: make(chan byte, controlSlots),
		ack:     make(chan byte, controlSlots),
		termCh:  make(chan struct{}),
		closed:  make(chan struct{}),
	}
	return &Driver{link: l}, &Device{link: l}
}

// terminate sets the shared termination flag and wakes blocked readers.
func (l *link) terminate() {
	l.term.Store(true)
	l.termOnce.Do(func() { close(l.termCh) })
}

// close tears down the link. Safe to call from either end, any number
// of times.
func (l *link) close() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// readByte blocks for one byte from ch. Pending bytes are drained before
// closure or termination is reported, so events buffered ahead of
// shutdown are not lost.
func (l *link) readByte(ctx context.Context, ch chan byte) (byte, error) {
	select {
	case b := <-ch:
		return b, nil
	default:
	}
	select {
	case b := <-ch:
		return b, nil
	case <-l.closed:
		return 0, pkg.ErrClosed
	case <-l.termCh:
		return 0, pkg.ErrTerminated
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// writeByte sends one byte on ch.
func (l *link) writeByte(ctx context.Context, ch chan byte, b byte) error {
	select {
	case <-l.closed:
		return pkg.ErrClosed
	default:
	}
	select {
	case ch <- b:
		return nil
	case <-l.closed:
		return pkg.ErrClosed
	case <-l.termCh:
		return pkg.ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver is the driver-side end of an in-memory link.
type Driver struct {
	link *link
}

// Open attaches to the link. The in-memory link is connected at
// construction, so Open only validates that it is still up.
func (d *Driver) Open(ctx context.Context) error {
	select {
	case <-d.link.closed:
		return pkg.ErrClosed
	default:
		return nil
	}
}

// ReadEvent blocks for one framed event on the interrupt channel.
func (d *Driver) ReadEvent(ctx context.Context) (transport.Event, error) {
	b, err := d.link.readByte(ctx, d.link.events)
	if err != nil {
		return transport.Event{}, err
	}

	ev, escaped := transport.DecodeEvent(b)
	if !escaped {
		return ev, nil
	}

	// Escape prefix: the next byte is a literal key.
	key, err := d.link.readByte(ctx, d.link.events)
	if err != nil {
		return transport.Event{}, err
	}
	return transport.Event{Kind: transport.EventKey, Key: key}, nil
}

// SendCommand writes one command byte on the control channel.
func (d *Driver) SendCommand(ctx context.Context) error {
	return d.link.writeByte(ctx, d.link.command, transport.Command)
}

// ReadAck blocks for one acknowledgment byte on the ack channel.
func (d *Driver) ReadAck(ctx context.Context) (byte, error) {
	return d.link.readByte(ctx, d.link.ack)
}

// SetLED publishes the LED state to the shared cell.
func (d *Driver) SetLED(on bool) {
	d.link.led.Store(on)
}

// LED reads the LED state from the shared cell.
func (d *Driver) LED() bool {
	return d.link.led.Load()
}

// Terminate sets the shared termination flag.
func (d *Driver) Terminate() {
	d.link.terminate()
}

// Terminated reports whether the termination flag is set.
func (d *Driver) Terminated() bool {
	return d.link.term.Load()
}

// Close tears down the link. Idempotent.
func (d *Driver) Close() error {
	d.link.close()
	return nil
}

// Device is the hardware-simulator-side end of an in-memory link.
type Device struct {
	link *link

	// Reusable encode buffer for WriteKey.
	encBuf [transport.EncodeKeySize]byte
	encMu  sync.Mutex
}

// Open attaches to the link.
func (d *Device) Open(ctx context.Context) error {
	select {
	case <-d.link.closed:
		return pkg.ErrClosed
	default:
		return nil
	}
}

// WriteKey sends one literal key byte on the interrupt channel, escaped
// if it collides with a reserved value.
func (d *Device) WriteKey(ctx context.Context, b byte) error {
	d.encMu.Lock()
	defer d.encMu.Unlock()

	n := transport.EncodeKey(d.encBuf[:], b)
	for i := 0; i < n; i++ {
		if err := d.link.writeByte(ctx, d.link.events, d.encBuf[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteControl sends a non-key event sentinel on the interrupt channel.
func (d *Device) WriteControl(ctx context.Context, kind transport.EventKind) error {
	s := transport.SentinelFor(kind)
	if s == 0 {
		return pkg.ErrInvalidParameter
	}
	return d.link.writeByte(ctx, d.link.events, s)
}

// ReadCommand blocks for one command byte on the control channel.
func (d *Device) ReadCommand(ctx context.Context) (byte, error) {
	return d.link.readByte(ctx, d.link.command)
}

// WriteAck writes one acknowledgment byte on the ack channel.
func (d *Device) WriteAck(ctx context.Context) error {
	return d.link.writeByte(ctx, d.link.ack, transport.Ack)
}

// LED reads the LED state from the shared cell.
func (d *Device) LED() bool {
	return d.link.led.Load()
}

// Terminate sets the shared termination flag.
func (d *Device) Terminate() {
	d.link.terminate()
}

// Terminated reports whether the termination flag is set.
func (d *Device) Terminated() bool {
	return d.link.term.Load()
}

// Close tears down the link. Idempotent.
func (d *Device) Close() error {
	d.link.close()
	return nil
}

// Ensure both ends implement the transport interfaces.
var (
	_ transport.DriverLink = (*Driver)(nil)
	_ transport.DeviceLink = (*Device)(nil)
)
