package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initReceiverMetrics() {
	r.BatchesReceivedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphwrite_batches_received_total",
			Help: "Total number of batch frames received",
		},
		[]string{"status"}, // ok, malformed, handler_error
	)

	r.RecordsReceivedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphwrite_records_received_total",
			Help: "Total number of write records received",
		},
		[]string{"kind"},
	)

	r.HandleDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphwrite_handle_duration_seconds",
			Help:    "Time spent in the batch handler",
			Buckets: prometheus.DefBuckets,
		},
	)
}

func (r *Registry) initProcessMetrics() {
	r.UptimeSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphwrite_uptime_seconds",
			Help: "Time since the registry was created in seconds",
		},
	)

	r.GoRoutines = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphwrite_goroutines",
			Help: "Number of goroutines",
		},
	)
}
