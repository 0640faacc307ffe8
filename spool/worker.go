// Package spool implements the buffering and failover core: a bounded
// event queue drained by a single background worker that walks an
// ordered sink chain per record, advancing past failed sinks and
// optionally resetting to the primary after a cooldown.
package spool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/logrelay/metrics"
	"github.com/lcx/logrelay/record"
	"github.com/lcx/logrelay/sink"
)

const (
	// DefaultMaxBufferCount bounds memory while the chain is stalled on
	// a slow sink; beyond it new records are dropped.
	DefaultMaxBufferCount = 10000

	// DefaultWakeInterval is the safety-net timeout after which a parked
	// worker re-checks the queue even without a wake signal.
	DefaultWakeInterval = 2 * time.Second

	// DefaultCloseGrace bounds how long Close waits for the worker to
	// finish its current drain pass. Fast shutdown wins over guaranteed
	// delivery; records still buffered when it expires are abandoned.
	DefaultCloseGrace = 250 * time.Millisecond
)

// Clock supplies wall-clock time for the rollover cooldown decision.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options tunes the drain worker. The zero value is usable: no cursor
// reset, no notifications, default timings.
type Options struct {
	// ResetRolloverCheck is how long the chain must go without a further
	// rollover before the cursor resets to the primary sink. 0 disables
	// the reset; the cursor then sticks at the last-known-good sink.
	ResetRolloverCheck time.Duration

	// NotificationTarget names the facade channel receiving rollover
	// notifications. Empty disables notification.
	NotificationTarget string

	// Facade resolves the notification target. Nil disables notification.
	Facade Facade

	WakeInterval time.Duration
	CloseGrace   time.Duration

	// Clock overrides the time source, for tests. Nil means system time.
	Clock Clock
}

// Worker is the single consumer of the queue. The cursor, rollover
// timestamp and latches are touched only inside the worker goroutine
// (the latch write side excepted, which the latch itself guards), so
// none of them need further synchronization.
type Worker struct {
	queue   *Queue
	chain   []sink.Sink
	latches []*latch
	notify  *notifier
	clock   Clock

	cursor     int
	rolloverAt time.Time
	resetAfter time.Duration

	wakeInterval time.Duration
	closeGrace   time.Duration

	ntfChan chan chan struct{}
	done    chan struct{}
	exited  chan struct{}

	activated    atomic.Bool
	activateOnce sync.Once
	closeOnce    sync.Once
}

// NewWorker wires a worker to its queue and sink chain. The chain is
// fixed from here on; Activate starts consumption.
func NewWorker(queue *Queue, chain []sink.Sink, opts Options) *Worker {
	if opts.WakeInterval <= 0 {
		opts.WakeInterval = DefaultWakeInterval
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = DefaultCloseGrace
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}

	return &Worker{
		queue:        queue,
		chain:        chain,
		latches:      make([]*latch, len(chain)),
		notify:       &notifier{facade: opts.Facade, target: opts.NotificationTarget},
		clock:        opts.Clock,
		resetAfter:   opts.ResetRolloverCheck,
		wakeInterval: opts.WakeInterval,
		closeGrace:   opts.CloseGrace,
		ntfChan:      make(chan chan struct{}),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
	}
}

// Activate installs error adapters on every sink that exposes an error
// handler hook and starts the drain goroutine. Calling it again, or
// after Close, is a no-op.
func (w *Worker) Activate() {
	w.activateOnce.Do(func() {
		select {
		case <-w.done:
			return
		default:
		}

		for i, s := range w.chain {
			if n, ok := s.(sink.ErrorNotifier); ok {
				l := &latch{}
				w.latches[i] = l
				n.SetErrorHandler(l.signal)
			}
		}

		w.activated.Store(true)
		go w.run()
	})
}

// Closing reports whether a close request has been issued.
func (w *Worker) Closing() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Flush requests a drain pass and waits for it to complete. It returns
// immediately when the worker was never activated or has already exited.
func (w *Worker) Flush() {
	if !w.activated.Load() {
		return
	}

	done := make(chan struct{})
	select {
	case w.ntfChan <- done:
		select {
		case <-done:
		case <-w.exited:
		}
	case <-w.exited:
	}
}

// Close asks the worker to stop and waits up to the grace period for it
// to finish its current drain pass. Idempotent, never blocks past the
// grace period, never propagates an error: whatever is still buffered
// afterwards is abandoned.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})

	if !w.activated.Load() {
		return
	}

	select {
	case <-w.exited:
	case <-time.After(w.closeGrace):
	}
}

// run is the drain loop: park until a record arrives, the safety-net
// ticker fires, a flush is requested, or close is signaled; then empty
// the queue.
func (w *Worker) run() {
	tick := time.NewTicker(w.wakeInterval)
	defer tick.Stop()
	defer close(w.exited)

	for {
		select {
		case rec := <-w.queue.ch:
			metrics.SetBuffered(w.queue.Count())
			w.deliver(rec)
			w.drain()
		case <-tick.C:
			w.drain()
		case done := <-w.ntfChan:
			w.drain()
			if done != nil {
				close(done)
			}
		case <-w.done:
			w.drain()
			return
		}
	}
}

// drain empties the queue without blocking.
func (w *Worker) drain() {
	for {
		rec, ok := w.queue.TryDequeue()
		if !ok {
			return
		}
		w.deliver(rec)
	}
}

// deliver walks the chain for one record: start at the cursor (or at the
// primary sink when the reset cooldown has elapsed), advance past every
// failing sink with a notification, persist the cursor on success, drop
// the record when the chain is exhausted.
func (w *Worker) deliver(rec *record.Record) {
	idx := w.cursor
	if w.resetAfter > 0 && !w.rolloverAt.IsZero() &&
		w.clock.Now().Sub(w.rolloverAt) >= w.resetAfter {
		idx = 0
	}

	for idx < len(w.chain) {
		err := w.attempt(idx, rec)
		if err == nil {
			// The chain sticks here: subsequent records skip the sinks
			// already observed failing until the cooldown elapses.
			w.cursor = idx
			metrics.RecordDelivered(w.chain[idx].Name())
			return
		}

		w.notify.notifyAdvance(w.chain[idx].Name(), err)
		metrics.RecordRollover(w.chain[idx].Name())
		w.rolloverAt = w.clock.Now()
		idx++
	}

	// All sinks failed (or none are configured). The record is dropped,
	// never requeued; this is terminal for the record, not the worker.
	metrics.RecordExhausted()
}

// attempt delivers the record to one sink and normalizes every failure
// mode into an error: a returned error, a panic, or a swallowed error
// reported through the sink's armed latch.
func (w *Worker) attempt(idx int, rec *record.Record) (err error) {
	l := w.latches[idx]
	if l != nil {
		l.arm()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
		if l != nil {
			if lerr, fired := l.consume(); fired && err == nil {
				err = lerr
			}
		}
	}()

	return w.chain[idx].Deliver(rec)
}
