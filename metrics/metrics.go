// Package metrics tracks delivery counters for the relay and exposes
// them in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const _namespace = "logrelay"

var (
	_enqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: _namespace,
		Name:      "records_enqueued_total",
		Help:      "Records accepted into the buffer.",
	})

	_dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: _namespace,
		Name:      "records_dropped_total",
		Help:      "Records dropped because the buffer was full.",
	})

	_exhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: _namespace,
		Name:      "records_exhausted_total",
		Help:      "Records dropped after every sink in the chain failed.",
	})

	_delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: _namespace,
		Name:      "records_delivered_total",
		Help:      "Records successfully delivered, per sink.",
	}, []string{"sink"})

	_rollovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: _namespace,
		Name:      "sink_rollovers_total",
		Help:      "Chain advances past a failed sink, per failed sink.",
	}, []string{"sink"})

	_buffered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: _namespace,
		Name:      "records_buffered",
		Help:      "Records currently held in the buffer.",
	})
)

// RecordEnqueued counts one record accepted into the buffer.
func RecordEnqueued() {
	_enqueued.Inc()
}

// RecordDropped counts one record rejected on a full buffer.
func RecordDropped() {
	_dropped.Inc()
}

// RecordExhausted counts one record dropped after chain exhaustion.
func RecordExhausted() {
	_exhausted.Inc()
}

// RecordDelivered counts one successful delivery to the named sink.
func RecordDelivered(sink string) {
	_delivered.WithLabelValues(sink).Inc()
}

// RecordRollover counts one chain advance past the named sink.
func RecordRollover(sink string) {
	_rollovers.WithLabelValues(sink).Inc()
}

// SetBuffered updates the buffered-records gauge.
func SetBuffered(n int) {
	_buffered.Set(float64(n))
}
