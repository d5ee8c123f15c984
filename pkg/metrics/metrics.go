package metrics

import (
	"runtime"
	"time"
)

// Submit statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Receive statuses
const (
	StatusOK           = "ok"
	StatusMalformed    = "malformed"
	StatusHandlerError = "handler_error"
)

// RecordSubmit records the outcome of one batch submission.
func (r *Registry) RecordSubmit(status string, vertices, edges, rawBytes, wireBytes int, duration time.Duration) {
	r.BatchesSubmittedTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	r.RecordsSubmittedTotal.WithLabelValues("vertex").Add(float64(vertices))
	r.RecordsSubmittedTotal.WithLabelValues("edge").Add(float64(edges))
	r.BatchSizeRecords.Observe(float64(vertices + edges))
	r.BatchBytes.WithLabelValues("raw").Observe(float64(rawBytes))
	r.BatchBytes.WithLabelValues("wire").Observe(float64(wireBytes))
	r.SubmitDuration.Observe(duration.Seconds())
}

// RecordRetry counts one send retry
func (r *Registry) RecordRetry() {
	r.SubmitRetriesTotal.Inc()
}

// SetPending updates the pending record gauge
func (r *Registry) SetPending(n int) {
	r.PendingRecords.Set(float64(n))
}

// RecordAutoFlush counts a size-triggered flush
func (r *Registry) RecordAutoFlush() {
	r.AutoFlushesTotal.Inc()
}

// RecordReceive records one received frame. Record counts are only added for
// frames that decoded.
func (r *Registry) RecordReceive(status string, vertices, edges int, duration time.Duration) {
	r.BatchesReceivedTotal.WithLabelValues(status).Inc()
	if status == StatusMalformed {
		return
	}
	r.RecordsReceivedTotal.WithLabelValues("vertex").Add(float64(vertices))
	r.RecordsReceivedTotal.WithLabelValues("edge").Add(float64(edges))
	r.HandleDuration.Observe(duration.Seconds())
}

// UpdateProcessMetrics refreshes uptime and goroutine gauges
func (r *Registry) UpdateProcessMetrics() {
	r.UptimeSeconds.Set(time.Since(r.startedAt).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}
