// Package transport defines the simulated hardware link between the
// keyboard driver and the hardware-side simulator.
//
// The link consists of three unidirectional byte channels plus two shared
// one-byte cells:
//
//   - event:   hardware → driver, one framed key event per poll
//   - command: driver → hardware, single command byte per LED change
//   - ack:     hardware → driver, single acknowledgment byte per command
//   - led:     shared cell holding the current LED state (0/1)
//   - term:    shared cell holding the termination flag (0/1, monotonic)
//
// The [DriverLink] and [DeviceLink] interfaces expose the two views of the
// link. Concrete implementations live in subpackages:
//
//   - [github.com/ardnew/softkbd/transport/pipe] uses named pipes and
//     memory-mapped cells for cross-process operation
//   - [github.com/ardnew/softkbd/transport/mem] uses in-process channels,
//     primarily for tests and single-process simulation
//
// # Framing
//
// The event channel reserves four sentinel byte values (no-event,
// capslock-press, capslock-release, end-of-stream). A literal key byte
// that collides with a sentinel, or with the escape byte itself, is
// prefixed with an escape byte so that arbitrary binary key input remains
// representable. See [EncodeKey] and [DecodeEvent].
package transport
