package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initClientMetrics() {
	r.BatchesSubmittedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphwrite_batches_submitted_total",
			Help: "Total number of batches handed to the transport",
		},
		[]string{"status"}, // success, error, skipped
	)

	r.RecordsSubmittedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphwrite_records_submitted_total",
			Help: "Total number of write records sent",
		},
		[]string{"kind"}, // vertex, edge
	)

	r.BatchSizeRecords = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphwrite_batch_size_records",
			Help:    "Number of records per submitted batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 .. 16384
		},
	)

	r.BatchBytes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphwrite_batch_bytes",
			Help:    "Encoded batch size in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"stage"}, // raw, wire
	)

	r.SubmitDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphwrite_submit_duration_seconds",
			Help:    "Time spent encoding and sending a batch, retries included",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.SubmitRetriesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphwrite_submit_retries_total",
			Help: "Total number of send retries",
		},
	)
}

func (r *Registry) initWriterMetrics() {
	r.PendingRecords = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphwrite_pending_records",
			Help: "Records accumulated but not yet flushed",
		},
	)

	r.AutoFlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphwrite_auto_flushes_total",
			Help: "Flushes triggered by reaching the maximum batch size",
		},
	)
}
