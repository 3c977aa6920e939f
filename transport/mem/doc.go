// Package mem provides an in-process implementation of the transport
// link, backed by Go channels and atomic cells.
//
// Both ends of the link live in the same process, which makes the
// package suitable for tests and for single-process simulation (see the
// loopback example). The event, command, and ack channels are buffered
// Go channels; the shared LED and termination cells are atomics shared
// by both ends.
//
// The command and ack channels have capacity one, matching the protocol
// invariant that at most one command is ever outstanding.
//
//	drv, dev := mem.New()
//	// hand drv to the driver stack, dev to the simulator
package mem
