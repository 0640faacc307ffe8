// Package logrelay is a log-forwarding buffer with automatic failover
// across an ordered chain of sinks.
//
// Producers enqueue frozen record snapshots without ever blocking; a
// dedicated background worker drains the buffer and delivers each record
// to the first working sink in the chain. When the active sink fails the
// chain rolls over to the next one, an operator channel is optionally
// notified, and after a configurable cooldown the chain resets to retry
// the primary sink.
package logrelay

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/lcx/logrelay/config"
	"github.com/lcx/logrelay/metrics"
	"github.com/lcx/logrelay/record"
	"github.com/lcx/logrelay/sink"
	"github.com/lcx/logrelay/spool"
)

// Options overrides collaborators the relay normally provides itself.
// The zero value is the production wiring.
type Options struct {
	// Registry supplies the sink factories. Nil means the built-ins.
	Registry *sink.Registry

	// Facade resolves rollover notification channels. Nil falls back to
	// StderrFacade when a notification target is configured.
	Facade spool.Facade

	// Clock overrides the time source for the rollover cooldown.
	Clock spool.Clock
}

// Relay owns the queue, the drain worker and the sink chain.
type Relay struct {
	cfg        *config.Config
	queue      *spool.Queue
	worker     *spool.Worker
	chain       []sink.Sink
	metricsSrv  *http.Server
	metricsAddr net.Addr
}

// New builds a relay from configuration with default collaborators.
func New(cfg *config.Config) (*Relay, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions builds a relay from configuration, constructing the
// sink chain in declared order. The relay is inert until Activate.
func NewWithOptions(cfg *config.Config, opts Options) (*Relay, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = sink.NewRegistry()
	}

	chain := make([]sink.Sink, 0, len(cfg.Sinks))
	for _, spec := range cfg.Sinks {
		s, err := registry.Build(spec.Type, spec.Name, spec.Params)
		if err != nil {
			closeChain(chain)
			return nil, err
		}
		chain = append(chain, s)
	}

	facade := opts.Facade
	if facade == nil && cfg.RolloverNotificationTarget != "" {
		facade = StderrFacade{}
	}

	queue := spool.NewQueue(cfg.MaxBufferCount)
	worker := spool.NewWorker(queue, chain, spool.Options{
		ResetRolloverCheck: time.Duration(cfg.ResetRolloverCheckSec) * time.Second,
		NotificationTarget: cfg.RolloverNotificationTarget,
		Facade:             facade,
		WakeInterval:       time.Duration(cfg.WakeIntervalMillSec) * time.Millisecond,
		CloseGrace:         time.Duration(cfg.CloseGraceMillSec) * time.Millisecond,
		Clock:              opts.Clock,
	})

	return &Relay{
		cfg:    cfg,
		queue:  queue,
		worker: worker,
		chain:  chain,
	}, nil
}

// Activate starts the drain worker, installs error adapters on sinks
// that expose an error handler hook, and brings up the metrics endpoint
// when one is configured.
func (r *Relay) Activate() error {
	r.worker.Activate()

	if r.cfg.MetricsListenAddr != "" && r.metricsSrv == nil {
		srv, addr, err := metrics.StartServer(r.cfg.MetricsListenAddr, "")
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		r.metricsSrv = srv
		r.metricsAddr = addr
	}

	return nil
}

// Enqueue buffers one frozen record for delivery. It never blocks and
// never fails the caller: when the buffer is full, or the relay is
// closing, the record is dropped and false is returned.
func (r *Relay) Enqueue(rec *record.Record) bool {
	if rec == nil || r.worker.Closing() {
		return false
	}
	return r.queue.Enqueue(rec)
}

// Capture snapshots a log event and enqueues it: the dispatch-path
// convenience for hosts that do not build records themselves. kv is
// interpreted as alternating keys and values; a trailing odd key is
// ignored.
func (r *Relay) Capture(level record.Level, msg string, kv ...string) bool {
	rec := record.New(level, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		rec.With(kv[i], kv[i+1])
	}
	return r.Enqueue(rec)
}

// MetricsAddr returns the listen address of the metrics endpoint, nil
// when none is configured or the relay is not activated. With a ":0"
// configuration this is the only way to learn the effective port.
func (r *Relay) MetricsAddr() net.Addr {
	return r.metricsAddr
}

// BufferedCount reports the number of records currently buffered.
func (r *Relay) BufferedCount() int {
	return r.queue.Count()
}

// Flush requests a synchronous drain pass, best effort.
func (r *Relay) Flush() {
	r.worker.Flush()
}

// Close stops the worker within its grace period, then closes every
// sink. Safe to call more than once; records still buffered when the
// grace period expires are abandoned.
func (r *Relay) Close() error {
	r.worker.Close()

	if r.metricsSrv != nil {
		r.metricsSrv.Close()
		r.metricsSrv = nil
		r.metricsAddr = nil
	}

	var errs []error
	for _, s := range r.chain {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink '%s': %w", s.Name(), err))
		}
	}
	r.chain = nil
	if len(errs) > 0 {
		return fmt.Errorf("relay close: %v", errs)
	}
	return nil
}

func closeChain(chain []sink.Sink) {
	for _, s := range chain {
		_ = s.Close()
	}
}

// StderrFacade is the default notification facade: every channel writes
// the notification as an encoded fatal record to stderr.
type StderrFacade struct{}

// GetChannel implements spool.Facade.
func (StderrFacade) GetChannel(name string) spool.Channel {
	return stderrChannel{name: name}
}

type stderrChannel struct {
	name string
}

// EmitFatal implements spool.Channel.
func (c stderrChannel) EmitFatal(msg string, err error) {
	rec := record.New(record.FatalLevel, msg).With("channel", c.name)
	if err != nil {
		rec.WithErr(err)
	}
	_, _ = os.Stderr.Write(rec.Bytes())
}
