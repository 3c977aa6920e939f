package device

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/softkbd/pkg"
	"github.com/ardnew/softkbd/transport"
	"github.com/ardnew/softkbd/transport/mem"
)

func TestFeedTranslatesMarkers(t *testing.T) {
	drv, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sim.Close()

	if err := sim.Feed(context.Background(), strings.NewReader("a@b&#c")); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	want := []transport.Event{
		{Kind: transport.EventKey, Key: 'a'},
		{Kind: transport.EventPress},
		{Kind: transport.EventKey, Key: 'b'},
		{Kind: transport.EventRelease},
		{Kind: transport.EventNone},
		{Kind: transport.EventKey, Key: 'c'},
		{Kind: transport.EventEndOfStream},
	}
	for i, w := range want {
		ev, err := drv.ReadEvent(context.Background())
		if err != nil {
			t.Fatalf("ReadEvent %d: %v", i, err)
		}
		if ev != w {
			t.Errorf("event %d = %+v, want %+v", i, ev, w)
		}
	}
}

func TestFeedStopsAtEndOfStreamMarker(t *testing.T) {
	drv, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sim.Close()

	// Bytes after the '$' marker are not fed.
	if err := sim.Feed(context.Background(), strings.NewReader("a$zzz")); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	ev, err := drv.ReadEvent(context.Background())
	if err != nil || ev.Kind != transport.EventKey || ev.Key != 'a' {
		t.Fatalf("first event = %+v, %v", ev, err)
	}
	ev, err = drv.ReadEvent(context.Background())
	if err != nil || ev.Kind != transport.EventEndOfStream {
		t.Fatalf("second event = %+v, %v", ev, err)
	}
}

func TestFeedStopsOnTermination(t *testing.T) {
	drv, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sim.Close()

	drv.Terminate()
	err := sim.Feed(context.Background(), strings.NewReader("abc"))
	if !errors.Is(err, pkg.ErrTerminated) {
		t.Errorf("Feed after Terminate = %v, want ErrTerminated", err)
	}
}

func TestControlListenerReportsTransitions(t *testing.T) {
	drv, dev := mem.New()
	var display bytes.Buffer
	sim := New(dev, &display, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	publish := func(on bool) {
		t.Helper()
		drv.SetLED(on)
		if err := drv.SendCommand(ctx); err != nil {
			t.Fatalf("SendCommand: %v", err)
		}
		if _, err := drv.ReadAck(ctx); err != nil {
			t.Fatalf("ReadAck: %v", err)
		}
	}

	publish(true)  // off → on: prints
	publish(true)  // on → on: silent, still acked
	publish(false) // on → off: prints

	if err := sim.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := display.String(); got != "ON OFF " {
		t.Errorf("display = %q, want %q", got, "ON OFF ")
	}
}

func TestWaitReturnsAfterDriverTerminates(t *testing.T) {
	drv, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sim.Close()

	drv.Terminate()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sim.Wait(ctx); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	_, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sim.Close(); err != nil {
			t.Errorf("Close #%d: %v", i+1, err)
		}
	}
}

func TestOpenTwice(t *testing.T) {
	_, dev := mem.New()
	sim := New(dev, nil, 0)
	if err := sim.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sim.Close()

	if err := sim.Open(context.Background()); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Open = %v, want ErrAlreadyRunning", err)
	}
}
