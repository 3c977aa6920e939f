package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
)

// Bus file names (inside the bus directory).
const (
	fifoEvent   = "event"
	fifoCommand = "command"
	fifoAck     = "ack"
	cellLED     = "led"
	cellTerm    = "term"
)

// cellSize is the size of each shared memory cell.
const cellSize = 1

// readPollInterval bounds how long a blocked read can outlive
// cancellation or termination.
const readPollInterval = 100 * time.Millisecond

// Errors.
var (
	ErrBusCreate = errors.New("failed to create bus")
	ErrBusOpen   = errors.New("failed to open bus")
)

// bus holds the channels and cells shared by both link ends.
type bus struct {
	dir string

	event   *os.File
	command *os.File
	ack     *os.File

	// cellMu serializes cell access against the unmap in close, so a
	// Terminate racing a Close never touches a released page.
	cellMu  sync.Mutex
	ledMap  []byte // MAP_SHARED LED cell
	termMap []byte // MAP_SHARED termination cell

	// closed is set by Close so pollers stop promptly even while the
	// files are still being torn down.
	closed atomic.Bool

	// localTerm shadows the termination cell so Terminated remains
	// answerable after the mapping is released.
	localTerm atomic.Bool

	closeOnce sync.Once
}

// mkfifo creates a FIFO at path, tolerating one that already exists.
func mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o666); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("%w: mkfifo %s: %v", ErrBusCreate, path, err)
	}
	return nil
}

// openFIFO opens a FIFO without blocking on the peer. O_RDWR keeps the
// open from waiting for the other end, and O_NONBLOCK registers the file
// with the runtime poller so read deadlines work.
func openFIFO(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBusOpen, path, err)
	}
	return f, nil
}

// mapCell maps the one-byte cell at path, creating it when create is set.
// The file descriptor is not needed after the mapping is established.
func mapCell(path string, create bool) ([]byte, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBusOpen, path, err)
	}
	defer f.Close()

	if create {
		if err := f.Truncate(cellSize); err != nil {
			return nil, fmt.Errorf("%w: truncate %s: %v", ErrBusCreate, path, err)
		}
	}

	m, err := unix.Mmap(int(f.Fd()), 0, cellSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrBusOpen, path, err)
	}
	return m, nil
}

// readByte blocks for one byte from f, polling so that cancellation,
// termination, and closure are observed with bounded latency.
func (b *bus) readByte(ctx context.Context, f *os.File) (byte, error) {
	var buf [1]byte
	for {
		if b.closed.Load() {
			return 0, pkg.ErrClosed
		}
		if b.terminated() {
			return 0, pkg.ErrTerminated
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		f.SetReadDeadline(time.Now().Add(readPollInterval))
		n, err := f.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		switch {
		case err == nil:
			return 0, pkg.ErrShortRead
		case os.IsTimeout(err):
			continue
		case errors.Is(err, io.EOF):
			// FIFO opened O_RDWR never reports EOF on Linux, but
			// keep the mapping for portability.
			return 0, pkg.ErrClosed
		case errors.Is(err, os.ErrClosed):
			return 0, pkg.ErrClosed
		default:
			return 0, err
		}
	}
}

// writeBytes writes p to f in one call.
func (b *bus) writeBytes(f *os.File, p []byte) error {
	if b.closed.Load() {
		return pkg.ErrClosed
	}
	n, err := f.Write(p)
	if err != nil {
		if errors.Is(err, os.ErrClosed) {
			return pkg.ErrClosed
		}
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// terminate sets the shared termination flag. Monotonic: never cleared.
func (b *bus) terminate() {
	b.localTerm.Store(true)
	b.cellMu.Lock()
	if b.termMap != nil {
		b.termMap[0] = 1
	}
	b.cellMu.Unlock()
}

// terminated reports whether termination has been requested by either
// process.
func (b *bus) terminated() bool {
	if b.localTerm.Load() {
		return true
	}
	b.cellMu.Lock()
	set := b.termMap != nil && b.termMap[0] != 0
	b.cellMu.Unlock()
	if set {
		b.localTerm.Store(true)
	}
	return set
}

// setLED publishes the LED state to the shared cell.
func (b *bus) setLED(on bool) {
	b.cellMu.Lock()
	defer b.cellMu.Unlock()
	if b.ledMap == nil {
		return
	}
	if on {
		b.ledMap[0] = transport.LEDOn
	} else {
		b.ledMap[0] = transport.LEDOff
	}
}

// led reads the LED state from the shared cell.
func (b *bus) led() bool {
	b.cellMu.Lock()
	defer b.cellMu.Unlock()
	if b.ledMap == nil {
		return false
	}
	return b.ledMap[0] == transport.LEDOn
}

// close releases every channel and mapping exactly once. Reachable from
// multiple teardown paths, so repeated calls are no-ops.
func (b *bus) close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		if b.event != nil {
			b.event.Close()
		}
		if b.command != nil {
			b.command.Close()
		}
		if b.ack != nil {
			b.ack.Close()
		}
		b.cellMu.Lock()
		if b.ledMap != nil {
			unix.Munmap(b.ledMap)
			b.ledMap = nil
		}
		if b.termMap != nil {
			unix.Munmap(b.termMap)
			b.termMap = nil
		}
		b.cellMu.Unlock()
		pkg.LogDebug(pkg.ComponentTransport, "bus released", "dir", b.dir)
	})
	return nil
}

// Driver is the driver-side end of a pipe bus. It attaches to a bus
// created by the device end.
type Driver struct {
	bus
}

// NewDriver returns a driver end for the bus at busDir. Call Open to
// attach.
func NewDriver(busDir string) *Driver {
	return &Driver{bus: bus{dir: busDir}}
}

// Open attaches to an existing bus. It fails if any channel or cell is
// missing or cannot be opened; nothing may be submitted on a link that
// failed to open.
func (d *Driver) Open(ctx context.Context) error {
	var err error
	if d.event, err = openFIFO(filepath.Join(d.dir, fifoEvent)); err != nil {
		return err
	}
	if d.command, err = openFIFO(filepath.Join(d.dir, fifoCommand)); err != nil {
		d.close()
		return err
	}
	if d.ack, err = openFIFO(filepath.Join(d.dir, fifoAck)); err != nil {
		d.close()
		return err
	}
	if d.ledMap, err = mapCell(filepath.Join(d.dir, cellLED), false); err != nil {
		d.close()
		return err
	}
	if d.termMap, err = mapCell(filepath.Join(d.dir, cellTerm), false); err != nil {
		d.close()
		return err
	}

	pkg.LogInfo(pkg.ComponentTransport, "driver attached to bus", "dir", d.dir)
	return nil
}

// ReadEvent blocks for one framed event on the interrupt channel.
func (d *Driver) ReadEvent(ctx context.Context) (transport.Event, error) {
	b, err := d.readByte(ctx, d.event)
	if err != nil {
		return transport.Event{}, err
	}

	ev, escaped := transport.DecodeEvent(b)
	if !escaped {
		return ev, nil
	}

	key, err := d.readByte(ctx, d.event)
	if err != nil {
		return transport.Event{}, err
	}
	return transport.Event{Kind: transport.EventKey, Key: key}, nil
}

// SendCommand writes one command byte on the control channel.
func (d *Driver) SendCommand(ctx context.Context) error {
	return d.writeBytes(d.command, []byte{transport.Command})
}

// ReadAck blocks for one acknowledgment byte on the ack channel.
func (d *Driver) ReadAck(ctx context.Context) (byte, error) {
	return d.readByte(ctx, d.ack)
}

// SetLED publishes the LED state to the shared cell.
func (d *Driver) SetLED(on bool) { d.setLED(on) }

// LED reads the LED state from the shared cell.
func (d *Driver) LED() bool { return d.led() }

// Terminate sets the shared termination flag.
func (d *Driver) Terminate() { d.terminate() }

// Terminated reports whether the termination flag is set.
func (d *Driver) Terminated() bool { return d.terminated() }

// Close releases the driver end. Idempotent.
func (d *Driver) Close() error { return d.close() }

// Device is the hardware-simulator-side end of a pipe bus. It creates
// and owns the bus directory.
type Device struct {
	bus

	encBuf [transport.EncodeKeySize]byte
	encMu  sync.Mutex
}

// NewDevice returns a device end that will create the bus at busDir.
// Call Open to set it up.
func NewDevice(busDir string) *Device {
	return &Device{bus: bus{dir: busDir}}
}

// Open creates the bus directory, FIFOs, and shared cells, and attaches
// to them. The cells are initialized to LED off and termination unset.
func (d *Device) Open(ctx context.Context) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBusCreate, d.dir, err)
	}

	for _, name := range []string{fifoEvent, fifoCommand, fifoAck} {
		if err := mkfifo(filepath.Join(d.dir, name)); err != nil {
			return err
		}
	}

	var err error
	if d.event, err = openFIFO(filepath.Join(d.dir, fifoEvent)); err != nil {
		return err
	}
	if d.command, err = openFIFO(filepath.Join(d.dir, fifoCommand)); err != nil {
		d.close()
		return err
	}
	if d.ack, err = openFIFO(filepath.Join(d.dir, fifoAck)); err != nil {
		d.close()
		return err
	}
	if d.ledMap, err = mapCell(filepath.Join(d.dir, cellLED), true); err != nil {
		d.close()
		return err
	}
	if d.termMap, err = mapCell(filepath.Join(d.dir, cellTerm), true); err != nil {
		d.close()
		return err
	}

	d.ledMap[0] = transport.LEDOff
	d.termMap[0] = 0

	pkg.LogInfo(pkg.ComponentTransport, "bus created", "dir", d.dir)
	return nil
}

// WriteKey sends one literal key byte on the interrupt channel, escaped
// if it collides with a reserved value. The framed bytes go out in a
// single write so they are never interleaved with another event.
func (d *Device) WriteKey(ctx context.Context, b byte) error {
	d.encMu.Lock()
	defer d.encMu.Unlock()

	n := transport.EncodeKey(d.encBuf[:], b)
	return d.writeBytes(d.event, d.encBuf[:n])
}

// WriteControl sends a non-key event sentinel on the interrupt channel.
func (d *Device) WriteControl(ctx context.Context, kind transport.EventKind) error {
	s := transport.SentinelFor(kind)
	if s == 0 {
		return pkg.ErrInvalidParameter
	}
	return d.writeBytes(d.event, []byte{s})
}

// ReadCommand blocks for one command byte on the control channel.
func (d *Device) ReadCommand(ctx context.Context) (byte, error) {
	return d.readByte(ctx, d.command)
}

// WriteAck writes one acknowledgment byte on the ack channel.
func (d *Device) WriteAck(ctx context.Context) error {
	return d.writeBytes(d.ack, []byte{transport.Ack})
}

// LED reads the LED state from the shared cell.
func (d *Device) LED() bool { return d.led() }

// Terminate sets the shared termination flag.
func (d *Device) Terminate() { d.terminate() }

// Terminated reports whether the termination flag is set.
func (d *Device) Terminated() bool { return d.terminated() }

// Close releases the device end and removes the bus from the
// filesystem. Idempotent.
func (d *Device) Close() error {
	err := d.close()
	for _, name := range []string{fifoEvent, fifoCommand, fifoAck, cellLED, cellTerm} {
		os.Remove(filepath.Join(d.dir, name))
	}
	os.Remove(d.dir)
	return err
}

// Ensure both ends implement the transport interfaces.
var (
	_ transport.DriverLink = (*Driver)(nil)
	_ transport.DeviceLink = (*Device)(nil)
)
