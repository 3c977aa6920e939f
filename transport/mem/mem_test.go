package mem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
)

func TestKeyRoundTrip(t *testing.T) {
	drv, dev := New()
	ctx := context.Background()

	keys := []byte{'a', 'Z', ' ', 0x00, transport.NoEvent, transport.Escape}
	for _, k := range keys {
		if err := dev.WriteKey(ctx, k); err != nil {
			t.Fatalf("WriteKey(%#x): %v", k, err)
		}
	}

	for _, k := range keys {
		ev, err := drv.ReadEvent(ctx)
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		if ev.Kind != transport.EventKey || ev.Key != k {
			t.Errorf("ReadEvent = %+v, want key %#x", ev, k)
		}
	}
}

func TestControlEvents(t *testing.T) {
	drv, dev := New()
	ctx := context.Background()

	kinds := []transport.EventKind{
		transport.EventNone,
		transport.EventPress,
		transport.EventRelease,
		transport.EventEndOfStream,
	}
	for _, k := range kinds {
		if err := dev.WriteControl(ctx, k); err != nil {
			t.Fatalf("WriteControl(%v): %v", k, err)
		}
	}

	for _, k := range kinds {
		ev, err := drv.ReadEvent(ctx)
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		if ev.Kind != k {
			t.Errorf("ReadEvent = %v, want %v", ev.Kind, k)
		}
	}
}

func TestWriteControlRejectsKey(t *testing.T) {
	_, dev := New()
	err := dev.WriteControl(context.Background(), transport.EventKey)
	if !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("WriteControl(EventKey) = %v, want ErrInvalidParameter", err)
	}
}

func TestCommandAckHandshake(t *testing.T) {
	drv, dev := New()
	ctx := context.Background()

	drv.SetLED(true)
	if err := drv.SendCommand(ctx); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	cmd, err := dev.ReadCommand(ctx)
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != transport.Command {
		t.Errorf("ReadCommand = %#x, want %#x", cmd, transport.Command)
	}
	if !dev.LED() {
		t.Error("device LED cell not set after SetLED(true)")
	}

	if err := dev.WriteAck(ctx); err != nil {
		t.Fatalf("WriteAck: %v", err)
	}
	ack, err := drv.ReadAck(ctx)
	if err != nil {
		t.Fatalf("ReadAck: %v", err)
	}
	if ack != transport.Ack {
		t.Errorf("ReadAck = %#x, want %#x", ack, transport.Ack)
	}
}

func TestTerminateWakesBlockedReader(t *testing.T) {
	drv, _ := New()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := drv.ReadEvent(ctx)
		done <- err
	}()

	// Give the reader time to block.
	time.Sleep(10 * time.Millisecond)
	drv.Terminate()

	select {
	case err := <-done:
		if !errors.Is(err, pkg.ErrTerminated) {
			t.Errorf("ReadEvent after Terminate = %v, want ErrTerminated", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadEvent did not return after Terminate")
	}

	if !drv.Terminated() {
		t.Error("Terminated() = false after Terminate")
	}
}

func TestTerminateWakesBlockedWriter(t *testing.T) {
	_, dev := New()
	ctx := context.Background()

	// Fill the interrupt channel so the next write blocks.
	for i := 0; i < eventBufferSize; i++ {
		if err := dev.WriteKey(ctx, 'x'); err != nil {
			t.Fatalf("WriteKey #%d: %v", i, err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- dev.WriteKey(ctx, 'x')
	}()

	// Give the writer time to block.
	time.Sleep(10 * time.Millisecond)
	dev.Terminate()

	select {
	case err := <-done:
		if !errors.Is(err, pkg.ErrTerminated) {
			t.Errorf("WriteKey after Terminate = %v, want ErrTerminated", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WriteKey did not return after Terminate")
	}
}

func TestCloseWakesBlockedReader(t *testing.T) {
	drv, dev := New()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := dev.ReadCommand(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := drv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, pkg.ErrClosed) {
			t.Errorf("ReadCommand after Close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadCommand did not return after Close")
	}
}

func TestPendingEventsDrainAfterTerminate(t *testing.T) {
	drv, dev := New()
	ctx := context.Background()

	if err := dev.WriteKey(ctx, 'x'); err != nil {
		t.Fatalf("WriteKey: %v", err)
	}
	drv.Terminate()

	// The buffered event must still be delivered before the
	// termination error is reported.
	ev, err := drv.ReadEvent(ctx)
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}
	if ev.Kind != transport.EventKey || ev.Key != 'x' {
		t.Errorf("ReadEvent = %+v, want key 'x'", ev)
	}

	if _, err := drv.ReadEvent(ctx); !errors.Is(err, pkg.ErrTerminated) {
		t.Errorf("ReadEvent on drained link = %v, want ErrTerminated", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	drv, dev := New()
	for i := 0; i < 3; i++ {
		if err := drv.Close(); err != nil {
			t.Errorf("driver Close #%d: %v", i+1, err)
		}
		if err := dev.Close(); err != nil {
			t.Errorf("device Close #%d: %v", i+1, err)
		}
	}

	if err := drv.Open(context.Background()); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Open after Close = %v, want ErrClosed", err)
	}
}

func TestContextCancellation(t *testing.T) {
	drv, _ := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := drv.ReadAck(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ReadAck after cancel = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadAck did not return after cancel")
	}
}
