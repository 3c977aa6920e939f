package transport

import "fmt"

// Sentinel bytes reserved on the event channel.
const (
	NoEvent         = '#'  // Poll completed without a key event
	CapslockPress   = '@'  // Capslock key pressed
	CapslockRelease = '&'  // Capslock key released
	EndOfStream     = '$'  // No further input will arrive
	Escape          = 0x1B // Next byte is a literal key, not a sentinel
)

// Control channel bytes.
const (
	Command = 'C' // LED state changed, check the shared cell
	Ack     = 'A' // Command acknowledged
)

// Shared LED cell values.
const (
	LEDOff = 0
	LEDOn  = 1
)

// EventKind identifies the closed set of events the driver can observe
// on the interrupt channel.
type EventKind int

// Event kinds.
const (
	EventNone        EventKind = iota // No key activity this poll
	EventPress                        // Capslock press edge
	EventRelease                      // Capslock release edge
	EventEndOfStream                  // Input exhausted
	EventKey                          // Literal key byte
)

// String returns a human-readable event kind name.
func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventEndOfStream:
		return "end-of-stream"
	case EventKey:
		return "key"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one decoded interrupt-channel event. Key is meaningful only
// when Kind is EventKey.
type Event struct {
	Kind EventKind
	Key  byte
}

// IsReserved reports whether b carries protocol meaning on the event
// channel and therefore cannot appear unescaped as a literal key byte.
func IsReserved(b byte) bool {
	switch b {
	case NoEvent, CapslockPress, CapslockRelease, EndOfStream, Escape:
		return true
	}
	return false
}

// EncodeKeySize is the maximum encoded size of one literal key byte.
const EncodeKeySize = 2

// EncodeKey writes the framed form of literal key byte b to buf and
// returns the number of bytes written (1, or 2 when b collides with a
// reserved value). buf must hold at least EncodeKeySize bytes; EncodeKey
// returns 0 if it does not.
func EncodeKey(buf []byte, b byte) int {
	if len(buf) < EncodeKeySize {
		return 0
	}
	if IsReserved(b) {
		buf[0] = Escape
		buf[1] = b
		return 2
	}
	buf[0] = b
	return 1
}

// DecodeEvent classifies one byte read from the event channel. When the
// byte is the escape prefix, escaped is true and the caller must read the
// next byte and treat it as a literal key regardless of its value.
func DecodeEvent(b byte) (ev Event, escaped bool) {
	switch b {
	case NoEvent:
		return Event{Kind: EventNone}, false
	case CapslockPress:
		return Event{Kind: EventPress}, false
	case CapslockRelease:
		return Event{Kind: EventRelease}, false
	case EndOfStream:
		return Event{Kind: EventEndOfStream}, false
	case Escape:
		return Event{}, true
	default:
		return Event{Kind: EventKey, Key: b}, false
	}
}

// SentinelFor returns the event-channel byte for a non-key event kind.
// It returns 0 for EventKey (use EncodeKey) and unknown kinds.
func SentinelFor(kind EventKind) byte {
	switch kind {
	case EventNone:
		return NoEvent
	case EventPress:
		return CapslockPress
	case EventRelease:
		return CapslockRelease
	case EventEndOfStream:
		return EndOfStream
	default:
		return 0
	}
}
