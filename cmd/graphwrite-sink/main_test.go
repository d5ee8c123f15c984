package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/health"
	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
	"github.com/dd0wney/cluso-graphwriter/pkg/writeclient"
)

func sampleDelivery() writeclient.Delivery {
	b := writebatch.NewBuilder()
	b.AddVertex("Person", "1", writebatch.PropertyMap{"name": "Alice"})
	b.AddEdge("knows", 3, "Person", "1", "Person", "2", nil)
	return writeclient.Delivery{
		BatchID:   "b-1",
		ClientID:  "c1",
		Codec:     "proto",
		SentAt:    time.Now(),
		WireBytes: 120,
		Batch:     b.AsRequest("c1"),
	}
}

func TestLogHandler(t *testing.T) {
	var logs, out bytes.Buffer
	h := &logHandler{
		logger: logging.NewJSONLogger(&logs, logging.InfoLevel),
		out:    &out,
	}

	if err := h.HandleBatch(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("HandleBatch failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "batch received" || entry["batch_id"] != "b-1" {
		t.Errorf("log entry = %v", entry)
	}
	if entry["vertices"] != float64(1) || entry["edges"] != float64(1) {
		t.Errorf("counts = %v / %v", entry["vertices"], entry["edges"])
	}

	var echoed map[string]any
	if err := json.Unmarshal(out.Bytes(), &echoed); err != nil {
		t.Fatalf("echo line is not JSON: %v", err)
	}
	if echoed["batch_id"] != "b-1" || echoed["client_id"] != "c1" {
		t.Errorf("echoed = %v", echoed)
	}
	if requests, _ := echoed["write_requests"].([]any); len(requests) != 2 {
		t.Errorf("echoed %d write requests, want 2", len(requests))
	}
}

func TestLogHandlerWithoutEcho(t *testing.T) {
	h := &logHandler{logger: logging.NewNopLogger()}
	if err := h.HandleBatch(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("HandleBatch failed: %v", err)
	}
}

func TestHTTPServer(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordReceive(metrics.StatusOK, 2, 1, time.Millisecond)

	checker := health.NewChecker()
	checker.Register("receiver", health.RunningCheck(func() bool { return true }))

	srv := httptest.NewServer(newHTTPServer(":0", reg, checker).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "graphwrite_batches_received_total") {
		t.Errorf("metrics output lacks received counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
}

func TestHTTPServerReadiness(t *testing.T) {
	checker := health.NewChecker()
	checker.RegisterReadiness("receiver", health.RunningCheck(func() bool { return false }))

	srv := httptest.NewServer(newHTTPServer(":0", metrics.NewRegistry(), checker).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", resp.StatusCode)
	}
}
