package spool

import (
	"errors"
	"sync"
)

// errSinkSignaled is recorded when a sink invokes its error handler
// without supplying a cause.
var errSinkSignaled = errors.New("sink signaled delivery failure")

// latch is the single-slot error signal for one sink in the chain.
//
// The worker arms it immediately before a delivery attempt and consumes
// it exactly once after the attempt returns. Only the first signal per
// armed window is kept: a sink that invokes its error handler several
// times for one attempt still causes at most one chain advance. Signals
// arriving while the latch is not armed (late async failures between
// attempts) are discarded.
//
// The write side may be called from the sink's own call stack during the
// synchronous attempt or from a different goroutine (NATS reports
// transport errors asynchronously), so a mutex guards the slot.
type latch struct {
	mu    sync.Mutex
	armed bool
	fired bool
	err   error
}

// arm opens a fresh observation window, clearing any stale signal.
func (l *latch) arm() {
	l.mu.Lock()
	l.armed = true
	l.fired = false
	l.err = nil
	l.mu.Unlock()
}

// signal records a delivery failure. Only the first call per armed
// window takes effect.
func (l *latch) signal(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.armed || l.fired {
		return
	}
	if err == nil {
		err = errSinkSignaled
	}
	l.fired = true
	l.err = err
}

// consume closes the window and reports whether a failure was signaled.
func (l *latch) consume() (error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.armed = false
	if !l.fired {
		return nil, false
	}
	err := l.err
	l.fired = false
	l.err = nil
	return err, true
}
