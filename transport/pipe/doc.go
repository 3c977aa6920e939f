// Package pipe provides a named-pipe implementation of the transport
// link for cross-process operation.
//
// The driver process and the hardware-simulator process share a bus
// directory containing three FIFOs and two memory-mapped one-byte cells:
//
//	/tmp/kbd-bus/            # Bus directory
//	├── event                # Interrupt channel (device → driver)
//	├── command              # Control channel (driver → device)
//	├── ack                  # Ack channel (device → driver)
//	├── led                  # LED state cell (driver writes, device reads)
//	└── term                 # Termination flag cell (either side sets)
//
// The device end owns the bus: its Open creates the directory, FIFOs,
// and cells, and its Close removes them. The driver end opens an
// existing bus and fails fast if it is not fully set up.
//
// # Blocking and shutdown
//
// All FIFOs are opened with O_NONBLOCK so that opening one end never
// deadlocks waiting for the peer, and so [os.File.SetReadDeadline]
// works. Blocking reads poll with a short deadline and re-check
// cancellation, the shared termination cell, and local closure between
// attempts, which bounds shutdown latency even when no input arrives.
//
// # Shared cells
//
// The cells are mapped with MAP_SHARED via [golang.org/x/sys/unix].
// They carry no cross-process synchronization of their own: the LED cell
// is written only inside the command phase of the handshake, which
// serializes access, and the termination cell is monotonic (0 → 1 only),
// so a stale read is always safe.
package pipe
