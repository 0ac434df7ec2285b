// Package flogmetrics wraps the library's Prometheus instrumentation. A nil
// *Registry is always safe to call methods on — callers that don't want
// metrics simply never construct one, matching the rest of the ambient
// stack's "disabled means absent, not a no-op flag" convention.
package flogmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric this library emits. Construct one with New
// and pass it into dispatch.Config/sink configs that accept a *Registry.
type Registry struct {
	QueueDepth   prometheus.Gauge
	DroppedTotal prometheus.Counter

	EventsDispatchedTotal *prometheus.CounterVec
	EventsFilteredTotal   prometheus.Counter
	TransportErrorsTotal  *prometheus.CounterVec
	TransportRecordSecond *prometheus.HistogramVec

	DurableBufferDepth    prometheus.Gauge
	DurableRetryTotal     prometheus.Counter
	DurableDiscardedTotal prometheus.Counter

	RotatingFileBytesWritten prometheus.Counter
	RotatingFileRotations    prometheus.Counter

	ThrottledDropsTotal prometheus.Counter
}

// New builds a Registry and registers its collectors against reg. Pass
// prometheus.DefaultRegisterer for process-wide metrics, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration panics
// across test runs.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldlog_dispatch_queue_depth",
			Help: "Current number of events queued for a transport",
		}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_dispatch_dropped_total",
			Help: "Total events dropped because a transport's queue was full",
		}),
		EventsDispatchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlog_events_dispatched_total",
			Help: "Total events admitted past the level gate and filter chain",
		}, []string{"subsystem"}),
		EventsFilteredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_events_filtered_total",
			Help: "Total events rejected by the filter chain",
		}),
		TransportErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlog_transport_errors_total",
			Help: "Total transport record failures by transport name",
		}, []string{"transport"}),
		TransportRecordSecond: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldlog_transport_record_seconds",
			Help:    "Time spent in a transport's Record call",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		DurableBufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldlog_durable_buffer_depth",
			Help: "Current number of rows pending in the durable sink's buffer table",
		}),
		DurableRetryTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_durable_retry_total",
			Help: "Total durable sink retry attempts",
		}),
		DurableDiscardedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_durable_discarded_total",
			Help: "Total durable sink rows discarded after exceeding max retries",
		}),
		RotatingFileBytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_rotating_file_bytes_written_total",
			Help: "Total bytes appended to the active rotating file",
		}),
		RotatingFileRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_rotating_file_rotations_total",
			Help: "Total file rotations performed",
		}),
		ThrottledDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldlog_throttled_drops_total",
			Help: "Total events dropped by the throttled ring sink's overflow policy",
		}),
	}
}

// RecordTransportDuration is a small helper so sinks don't need to import
// prometheus directly just to observe a histogram.
func (r *Registry) RecordTransportDuration(transport string, d time.Duration) {
	if r == nil {
		return
	}
	r.TransportRecordSecond.WithLabelValues(transport).Observe(d.Seconds())
}

// RecordTransportError increments the per-transport error counter.
func (r *Registry) RecordTransportError(transport string) {
	if r == nil {
		return
	}
	r.TransportErrorsTotal.WithLabelValues(transport).Inc()
}
