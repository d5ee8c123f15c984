package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the metrics of the batch writer and sink
type Registry struct {
	// Client metrics
	BatchesSubmittedTotal *prometheus.CounterVec
	RecordsSubmittedTotal *prometheus.CounterVec
	BatchSizeRecords      prometheus.Histogram
	BatchBytes            *prometheus.HistogramVec
	SubmitDuration        prometheus.Histogram
	SubmitRetriesTotal    prometheus.Counter

	// Writer metrics
	PendingRecords   prometheus.Gauge
	AutoFlushesTotal prometheus.Counter

	// Receiver metrics
	BatchesReceivedTotal *prometheus.CounterVec
	RecordsReceivedTotal *prometheus.CounterVec
	HandleDuration       prometheus.Histogram

	// Process metrics
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	startedAt time.Time
	registry  *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
	}

	r.initClientMetrics()
	r.initWriterMetrics()
	r.initReceiverMetrics()
	r.initProcessMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
