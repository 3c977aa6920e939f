package driver

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
)

// closeTimeout bounds how long Close waits for in-flight workers to
// observe termination and retire.
const closeTimeout = 5 * time.Second

// Keyboard is the lifecycle controller for the keyboard driver. It owns
// the transport link, the device state, the two endpoint requests, and
// the termination signal.
type Keyboard struct {
	link  transport.DriverLink
	out   io.Writer
	state *DeviceState
	term  *Terminator

	intReq *Request
	ctlReq *Request

	// ledCh is the single-slot coalescing channel feeding LED values
	// to the control endpoint; the latest value wins.
	ledCh chan bool

	// ackCh reports each handshake result back to the blocked
	// publisher.
	ackCh chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.Mutex
	running bool

	releaseOnce sync.Once
}

// New creates a keyboard driver over the given link. Echoed key bytes
// are written to out; a nil out discards them. The two endpoint
// requests are created here and live until Close.
func New(link transport.DriverLink, out io.Writer) *Keyboard {
	if out == nil {
		out = io.Discard
	}
	return &Keyboard{
		link:   link,
		out:    out,
		state:  NewDeviceState(),
		term:   NewTerminator(),
		intReq: NewRequest(EndpointInterrupt),
		ctlReq: NewRequest(EndpointControl),
		ledCh:  make(chan bool, 1),
		ackCh:  make(chan error, 1),
	}
}

// State returns the capslock/LED state machine.
func (k *Keyboard) State() *DeviceState {
	return k.state
}

// InterruptRequest returns the interrupt endpoint request.
func (k *Keyboard) InterruptRequest() *Request {
	return k.intReq
}

// ControlRequest returns the control endpoint request.
func (k *Keyboard) ControlRequest() *Request {
	return k.ctlReq
}

// Done returns a channel closed when termination has been signaled,
// whether by end of input, a transport failure, or Terminate.
func (k *Keyboard) Done() <-chan struct{} {
	return k.term.Done()
}

// Open attaches to the transport, initializes device state to off, and
// submits the interrupt and control requests. It fails without
// submitting anything if the transport cannot be set up.
func (k *Keyboard) Open(ctx context.Context) error {
	k.mutex.Lock()
	if k.running {
		k.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	k.ctx, k.cancel = context.WithCancel(ctx)
	k.running = true
	k.mutex.Unlock()

	if err := k.link.Open(k.ctx); err != nil {
		k.mutex.Lock()
		k.running = false
		k.mutex.Unlock()
		return err
	}

	k.Submit(k.intReq)
	k.Submit(k.ctlReq)

	pkg.LogInfo(pkg.ComponentDriver, "keyboard opened")
	return nil
}

// Submit starts an endpoint worker for the request unless one is
// already active. Submitting an active request is a silent no-op, so
// duplicate submissions can never produce two workers for the same
// request. Submitting before Open (or after Close) is likewise a
// no-op, since no worker can run without an open link.
func (k *Keyboard) Submit(r *Request) {
	k.mutex.Lock()
	running := k.running
	k.mutex.Unlock()
	if r == nil || !running || !r.acquire() {
		return
	}
	if k.term.Terminated() {
		r.retire(pkg.CompletionTerminated)
		return
	}

	k.wg.Add(1)
	go k.worker(r)
}

// Terminate requests graceful shutdown, as from an OS interrupt or
// terminate signal. It only prevents further cycles; nothing in flight
// is cancelled mid-operation.
func (k *Keyboard) Terminate() {
	k.term.Signal()
	k.link.Terminate()
}

// Close performs graceful teardown: signal termination, wake blocked
// workers, wait (bounded) for them to retire, then release the link.
// The release happens exactly once no matter how many exit paths reach
// it; repeated calls are no-ops.
func (k *Keyboard) Close() error {
	k.term.Signal()
	k.link.Terminate()
	if k.cancel != nil {
		k.cancel()
	}

	retired := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(retired)
	}()
	select {
	case <-retired:
	case <-time.After(closeTimeout):
		pkg.LogWarn(pkg.ComponentDriver, "workers did not retire before timeout")
	}

	var err error
	k.releaseOnce.Do(func() {
		err = k.link.Close()
		pkg.LogInfo(pkg.ComponentDriver, "keyboard closed",
			"led", k.state.LED(), "capslock", k.state.Capslock())
	})

	k.mutex.Lock()
	k.running = false
	k.mutex.Unlock()
	return err
}

// worker is the long-lived endpoint loop behind one request. Each
// iteration performs exactly one blocking transport operation, marks
// the request completed, and runs the endpoint's completion step; loop
// continuation is the resubmission. A terminal status retires the
// request and triggers global termination.
func (k *Keyboard) worker(r *Request) {
	defer k.wg.Done()

	pkg.LogDebug(pkg.ComponentEndpoint, "worker started", "endpoint", r.Kind())

	status := pkg.CompletionSuccess
	for {
		r.begin()
		switch r.Kind() {
		case EndpointInterrupt:
			status = k.interruptCycle(r)
		case EndpointControl:
			status = k.controlCycle(r)
		}
		if status.Terminal() {
			break
		}
		if k.term.Terminated() {
			status = pkg.CompletionTerminated
			break
		}
	}

	if status != pkg.CompletionTerminated {
		// This worker is the shutdown trigger; wake everyone else.
		k.term.Signal()
		k.link.Terminate()
	}
	r.retire(status)

	pkg.LogDebug(pkg.ComponentEndpoint, "worker retired",
		"endpoint", r.Kind(), "status", status)
}

// interruptCycle performs one poll of the interrupt endpoint. Failure
// of the read is terminal, never retried.
func (k *Keyboard) interruptCycle(r *Request) pkg.CompletionStatus {
	ev, err := k.link.ReadEvent(k.ctx)
	if err != nil {
		return completionFor(err)
	}
	r.complete(eventByte(ev))

	switch ev.Kind {
	case transport.EventNone:
		// Poll completed without key activity.

	case transport.EventEndOfStream:
		return pkg.CompletionEndOfStream

	case transport.EventPress:
		led := k.state.Press()
		pkg.LogDebug(pkg.ComponentState, "capslock toggled", "led", led)
		// Block until the handshake finishes so the visible LED
		// reflects this press before any further byte is echoed.
		if err := k.publish(led); err != nil {
			return completionFor(err)
		}

	case transport.EventRelease:
		// Only the press edge matters for a toggle key: no state
		// change, no command.
		k.state.Release()

	case transport.EventKey:
		b := k.state.Transform(ev.Key)
		if _, err := k.out.Write([]byte{b}); err != nil {
			pkg.LogWarn(pkg.ComponentDriver, "output sink failed", "error", err)
			return pkg.CompletionError
		}
	}

	return pkg.CompletionSuccess
}

// controlCycle waits for a pending LED value and performs the publish
// handshake for it.
func (k *Keyboard) controlCycle(r *Request) pkg.CompletionStatus {
	select {
	case led := <-k.ledCh:
		err := k.handshake(led)
		r.complete(transport.Command)
		select {
		case k.ackCh <- err:
		default:
		}
		return completionFor(err)

	case <-k.term.Done():
		return pkg.CompletionTerminated

	case <-k.ctx.Done():
		return pkg.CompletionCancelled
	}
}

// handshake publishes one LED value: write the shared cell, send the
// command byte, then block for the acknowledgment. The next command
// cannot start until this one's ack has been received.
func (k *Keyboard) handshake(led bool) error {
	k.link.SetLED(led)
	if err := k.link.SendCommand(k.ctx); err != nil {
		return err
	}
	ack, err := k.link.ReadAck(k.ctx)
	if err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentEndpoint, "command acknowledged",
		"ack", ack, "led", led)
	return nil
}

// publish hands an LED value to the control endpoint through the
// coalescing slot and blocks until its handshake completes.
func (k *Keyboard) publish(led bool) error {
	// Drop any ack left behind by a publisher that gave up on
	// termination after its value was slotted, so it can never pair
	// with this publish.
	select {
	case <-k.ackCh:
	default:
	}

	select {
	case k.ledCh <- led:
	default:
		// Slot occupied: discard the stale value, keep the latest.
		select {
		case <-k.ledCh:
		default:
		}
		select {
		case k.ledCh <- led:
		case <-k.term.Done():
			return pkg.ErrTerminated
		case <-k.ctx.Done():
			return k.ctx.Err()
		}
	}

	select {
	case err := <-k.ackCh:
		return err
	case <-k.term.Done():
		return pkg.ErrTerminated
	case <-k.ctx.Done():
		return k.ctx.Err()
	}
}

// eventByte returns the wire byte recorded in a request buffer for an
// event.
func eventByte(ev transport.Event) byte {
	if ev.Kind == transport.EventKey {
		return ev.Key
	}
	return transport.SentinelFor(ev.Kind)
}

// completionFor maps a transport error to the completion status that
// retires the cycle.
func completionFor(err error) pkg.CompletionStatus {
	switch {
	case err == nil:
		return pkg.CompletionSuccess
	case errors.Is(err, pkg.ErrEndOfStream):
		return pkg.CompletionEndOfStream
	case errors.Is(err, pkg.ErrTerminated):
		return pkg.CompletionTerminated
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pkg.CompletionCancelled
	default:
		return pkg.CompletionError
	}
}
