package driver

import "sync"

// Terminator is a set-once termination signal. Workers select on Done
// at their loop boundaries instead of polling a flag; Signal wakes every
// waiter exactly once and later calls are no-ops.
type Terminator struct {
	once sync.Once
	done chan struct{}
}

// NewTerminator returns an unset termination signal.
func NewTerminator() *Terminator {
	return &Terminator{done: make(chan struct{})}
}

// Signal sets the termination signal. Monotonic: the signal can never
// be cleared, and repeated calls have no further effect.
func (t *Terminator) Signal() {
	t.once.Do(func() { close(t.done) })
}

// Done returns a channel closed when termination is signaled.
func (t *Terminator) Done() <-chan struct{} {
	return t.done
}

// Terminated reports whether termination has been signaled.
func (t *Terminator) Terminated() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
