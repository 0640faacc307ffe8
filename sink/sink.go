// Package sink defines the delivery capability consumed by the spool and
// ships the built-in destinations (console, file, NATS, Postgres).
//
// A sink accepts one record at a time and reports success or failure.
// Failure is normally a non-nil error from Deliver, but some destinations
// swallow errors internally and only surface them through a side channel;
// those implement ErrorNotifier so the spool can observe failed attempts
// anyway.
package sink

import "github.com/lcx/logrelay/record"

// Sink is a destination capable of accepting one log record.
//
// Deliver may block for as long as the destination needs (network I/O,
// disk, ...); the spool's drain worker is the only caller, so a slow sink
// stalls the chain walk but never a producer. Implementations need not be
// goroutine-safe for Deliver.
type Sink interface {
	// Name identifies the sink in rollover notifications and metrics.
	Name() string

	// Deliver writes one record to the destination. A nil return means
	// the record was accepted; the spool will not retry it elsewhere.
	Deliver(rec *record.Record) error

	// Close flushes and releases underlying resources.
	Close() error
}

// ErrorNotifier is implemented by sinks whose delivery contract does not
// propagate errors through Deliver. The spool installs a handler once at
// activation; the sink must invoke it for every failed delivery, from
// whatever goroutine the failure is detected on.
type ErrorNotifier interface {
	SetErrorHandler(func(error))
}
