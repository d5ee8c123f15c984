package writeclient

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// DefaultMaxBatchSize is the auto-flush threshold used when none is set
const DefaultMaxBatchSize = 1000

// Submitter sends finished batches. *Client implements it.
type Submitter interface {
	Submit(ctx context.Context, req writebatch.BatchRequest) (SubmitResult, error)
	Stop() error
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	ClientID     string // writebatch.DefaultClientID when empty
	MaxBatchSize int    // DefaultMaxBatchSize when zero

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Writer accumulates records from many goroutines and submits them in
// batches. A batch is submitted when it reaches MaxBatchSize records, on
// Flush, and on Close. A batch whose submission fails is dropped; the
// returned error reports its size.
type Writer struct {
	mu      sync.Mutex
	builder *writebatch.Builder
	closed  bool

	sender       Submitter
	clientID     string
	maxBatchSize int
	logger       logging.Logger
	metrics      *metrics.Registry
}

// NewWriter creates a writer on top of sender.
func NewWriter(sender Submitter, cfg WriterConfig) *Writer {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = writebatch.DefaultClientID
	}
	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultRegistry()
	}

	return &Writer{
		builder:      writebatch.NewBuilder(),
		sender:       sender,
		clientID:     clientID,
		maxBatchSize: maxBatchSize,
		logger:       logging.OrDefault(cfg.Logger).With(logging.Component("writer"), logging.ClientID(clientID)),
		metrics:      m,
	}
}

// AddVertex appends a vertex insert, flushing if the batch is full.
func (w *Writer) AddVertex(ctx context.Context, label, id string, props writebatch.PropertyMap) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClientClosed
	}
	w.builder.AddVertex(label, id, props)
	return w.afterAddLocked(ctx)
}

// AddEdge appends an edge insert, flushing if the batch is full.
func (w *Writer) AddEdge(ctx context.Context, label string, innerID int64, srcLabel, srcID, dstLabel, dstID string, props writebatch.PropertyMap) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClientClosed
	}
	w.builder.AddEdge(label, innerID, srcLabel, srcID, dstLabel, dstID, props)
	return w.afterAddLocked(ctx)
}

func (w *Writer) afterAddLocked(ctx context.Context) error {
	if w.builder.Size() < w.maxBatchSize {
		w.metrics.SetPending(w.builder.Size())
		return nil
	}
	w.metrics.RecordAutoFlush()
	_, err := w.flushLocked(ctx)
	return err
}

// Flush submits whatever is pending. Nothing is sent when the batch is empty.
func (w *Writer) Flush(ctx context.Context) (SubmitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return SubmitResult{}, ErrClientClosed
	}
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) (SubmitResult, error) {
	if w.builder.Size() == 0 {
		return SubmitResult{Skipped: true}, nil
	}

	req := w.builder.AsRequest(w.clientID)
	w.metrics.SetPending(0)

	res, err := w.sender.Submit(ctx, req)
	if err != nil {
		w.logger.Warn("dropping batch after failed submit",
			logging.Records(req.Len()),
			logging.Error(err))
		return res, err
	}
	return res, nil
}

// Pending returns the number of records not yet submitted
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builder.Size()
}

// Close flushes pending records and stops the sender. Close is idempotent;
// later calls return nil.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	_, flushErr := w.flushLocked(ctx)
	stopErr := w.sender.Stop()
	if flushErr != nil {
		return flushErr
	}
	return stopErr
}
