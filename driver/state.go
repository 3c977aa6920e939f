package driver

import "sync"

// DeviceState models the capslock toggle and its externally visible LED
// mirror. The two flags are kept in lockstep: after every completed
// publish, LED equals capslock.
//
// The interrupt path is the only mutator; the control path only reads.
// All access is serialized by an internal mutex.
type DeviceState struct {
	mu       sync.Mutex
	capslock bool
	led      bool
}

// NewDeviceState returns state with capslock and LED off.
func NewDeviceState() *DeviceState {
	return &DeviceState{}
}

// Press applies a capslock press edge: the state always toggles,
// reproducing physical toggle-key semantics. It returns the new LED
// value to publish.
func (s *DeviceState) Press() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capslock = !s.capslock
	s.led = s.capslock
	return s.led
}

// Release applies a capslock release edge. Only the press edge matters
// for a toggle key, so release changes nothing; it returns the current
// LED value for acknowledgment.
func (s *DeviceState) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// Capslock returns the capslock flag.
func (s *DeviceState) Capslock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capslock
}

// LED returns the LED mirror.
func (s *DeviceState) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// Transform case-transforms one key byte using the capslock state in
// effect now, at read time. Lowercase letters are upper-cased while
// capslock is on; every other byte passes through unchanged.
func (s *DeviceState) Transform(b byte) byte {
	s.mu.Lock()
	caps := s.capslock
	s.mu.Unlock()

	if caps && b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
