package spool

import (
	"github.com/lcx/logrelay/metrics"
	"github.com/lcx/logrelay/record"
)

// Queue is the bounded multi-producer single-consumer FIFO between
// producers and the drain worker.
//
// It is built on a buffered channel, so the capacity check and the
// append are one atomic step (no overshoot past the cap) and the channel
// itself is the coalescing wake signal for the worker: any number of
// enqueues between wake-ups cost the worker exactly one receive each.
type Queue struct {
	ch chan *record.Record
}

// NewQueue creates a queue holding at most capacity records.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultMaxBufferCount
	}
	return &Queue{ch: make(chan *record.Record, capacity)}
}

// Enqueue appends the record without ever blocking the producer. When
// the queue is full the record is dropped and false is returned; nothing
// is surfaced to the caller beyond that, logging must not be able to
// fail application code.
func (q *Queue) Enqueue(rec *record.Record) bool {
	select {
	case q.ch <- rec:
		metrics.RecordEnqueued()
		metrics.SetBuffered(len(q.ch))
		return true
	default:
		metrics.RecordDropped()
		return false
	}
}

// TryDequeue removes the oldest record. Consumer-only, non-blocking.
func (q *Queue) TryDequeue() (*record.Record, bool) {
	select {
	case rec := <-q.ch:
		metrics.SetBuffered(len(q.ch))
		return rec, true
	default:
		return nil, false
	}
}

// Count reports the number of buffered records.
func (q *Queue) Count() int {
	return len(q.ch)
}
