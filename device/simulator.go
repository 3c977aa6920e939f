package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
)

// DefaultPollInterval is the delay between fed bytes, simulating the
// hardware polling rate.
const DefaultPollInterval = 20 * time.Millisecond

// Simulator is the hardware-side half of the keyboard: it feeds key
// events to the driver and services the LED command/ack handshake.
type Simulator struct {
	link     transport.DeviceLink
	display  io.Writer
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.Mutex
	running bool

	releaseOnce sync.Once

	// prev is the last LED state reported to the display, so only
	// transitions are printed. Touched only by the control listener.
	prev bool
}

// New creates a simulator over the given link. LED transitions are
// written to display; a nil display discards them. A non-positive
// interval feeds without delay.
func New(link transport.DeviceLink, display io.Writer, interval time.Duration) *Simulator {
	if display == nil {
		display = io.Discard
	}
	return &Simulator{
		link:     link,
		display:  display,
		interval: interval,
	}
}

// Open sets up the link and starts the control listener. It fails
// without starting anything if the link cannot be set up.
func (s *Simulator) Open(ctx context.Context) error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mutex.Unlock()

	if err := s.link.Open(s.ctx); err != nil {
		s.mutex.Lock()
		s.running = false
		s.mutex.Unlock()
		return err
	}

	s.wg.Add(1)
	go s.controlLoop()

	pkg.LogInfo(pkg.ComponentDevice, "simulator opened")
	return nil
}

// Feed forwards the byte stream from r on the interrupt channel, one
// byte per poll interval, and appends the end-of-stream sentinel when r
// is exhausted. It returns early when the link terminates or ctx is
// cancelled.
func (s *Simulator) Feed(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		if s.link.Terminated() {
			return pkg.ErrTerminated
		}

		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return s.link.WriteControl(ctx, transport.EventEndOfStream)
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		switch b {
		case transport.NoEvent:
			err = s.link.WriteControl(ctx, transport.EventNone)
		case transport.CapslockPress:
			err = s.link.WriteControl(ctx, transport.EventPress)
		case transport.CapslockRelease:
			err = s.link.WriteControl(ctx, transport.EventRelease)
		case transport.EndOfStream:
			return s.link.WriteControl(ctx, transport.EventEndOfStream)
		default:
			err = s.link.WriteKey(ctx, b)
		}
		if err != nil {
			return err
		}

		if s.interval > 0 {
			select {
			case <-time.After(s.interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// controlLoop services the LED handshake until the link goes down.
func (s *Simulator) controlLoop() {
	defer s.wg.Done()

	pkg.LogDebug(pkg.ComponentDevice, "control listener started")

	for {
		cmd, err := s.link.ReadCommand(s.ctx)
		if err != nil {
			pkg.LogDebug(pkg.ComponentDevice, "control listener stopped", "reason", err)
			return
		}
		if cmd != transport.Command {
			pkg.LogWarn(pkg.ComponentDevice, "unexpected control byte", "byte", cmd)
			continue
		}

		led := s.link.LED()
		if led != s.prev {
			if led {
				fmt.Fprint(s.display, "ON ")
			} else {
				fmt.Fprint(s.display, "OFF ")
			}
		}
		s.prev = led

		// Acknowledge whether or not the state changed.
		if err := s.link.WriteAck(s.ctx); err != nil {
			pkg.LogDebug(pkg.ComponentDevice, "control listener stopped", "reason", err)
			return
		}
	}
}

// Wait blocks until the control listener has stopped, which happens
// when the driver terminates the link or Close is called.
func (s *Simulator) Wait(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate requests shutdown of both sides of the link.
func (s *Simulator) Terminate() {
	s.link.Terminate()
}

// Close stops the control listener and releases the link exactly once.
// Repeated calls are no-ops.
func (s *Simulator) Close() error {
	s.link.Terminate()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var err error
	s.releaseOnce.Do(func() {
		err = s.link.Close()
		pkg.LogInfo(pkg.ComponentDevice, "simulator closed")
	})

	s.mutex.Lock()
	s.running = false
	s.mutex.Unlock()
	return err
}
