// Package driver implements the driver-side half of the simulated USB
// HID keyboard: the request/completion machinery, the capslock/LED
// state machine, and the lifecycle controller that ties them to a
// transport link.
//
// # Architecture
//
//   - [Request] is the unit of asynchronous work bound to one endpoint,
//     cycling Idle → Submitted → Completed until a terminal condition
//     retires it
//   - [DeviceState] keeps the capslock flag and its externally visible
//     LED mirror in lockstep
//   - [Terminator] is the set-once termination signal observed by every
//     worker loop
//   - [Keyboard] owns the transport link, the two requests, and the
//     shared state, and coordinates startup and graceful teardown
//
// # Endpoints
//
// The interrupt endpoint polls the event channel one byte at a time.
// Ordinary key bytes are case-transformed with the capslock state in
// effect when the byte was read and echoed to the output sink. A
// capslock press toggles the state machine and blocks until the control
// endpoint has published the new LED state, so the visible LED never
// lags a processed press.
//
// The control endpoint performs the LED publish: it writes the shared
// LED cell, sends one command byte, and blocks for one acknowledgment
// before completing. At most one command is ever outstanding. Pending
// LED values reach the endpoint through a single-slot coalescing channel
// where the latest value wins, so a racing publish is never silently
// dropped.
package driver
