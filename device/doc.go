// Package device implements the hardware-side keyboard simulator: the
// peer process the driver talks to across the transport link.
//
// The simulator has two halves:
//
//   - The feeder reads a byte stream (typically a file) and forwards it
//     on the interrupt channel at a fixed poll interval, translating the
//     marker bytes of the input format into protocol events and
//     appending end-of-stream when the input runs out.
//   - The control listener services the LED handshake: for every
//     command byte it reads the shared LED cell, reports transitions to
//     a display writer ("ON " / "OFF "), and writes the acknowledgment.
//
// # Input format
//
// The feeder interprets four marker bytes, everything else is a literal
// key: '#' no-event, '@' capslock press, '&' capslock release, '$' end
// of stream.
package device
