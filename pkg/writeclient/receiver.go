package writeclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/wire"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// DefaultRecvTimeout bounds each blocking receive so Stop is noticed.
const DefaultRecvTimeout = time.Second

// Delivery is one received batch with its frame metadata.
type Delivery struct {
	BatchID    string
	ClientID   string
	Codec      string
	Compressed bool
	SentAt     time.Time
	WireBytes  int
	Batch      writebatch.BatchRequest
}

// BatchHandler processes received batches.
type BatchHandler interface {
	HandleBatch(ctx context.Context, d Delivery) error
}

// BatchHandlerFunc adapts a function to BatchHandler
type BatchHandlerFunc func(ctx context.Context, d Delivery) error

// HandleBatch calls f
func (f BatchHandlerFunc) HandleBatch(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Address     string
	RecvTimeout time.Duration

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Receiver pulls framed batches and hands them to a handler one at a time.
type Receiver struct {
	factory     transport.SocketFactory
	addr        string
	recvTimeout time.Duration
	handler     BatchHandler
	logger      logging.Logger
	metrics     *metrics.Registry

	socket    transport.ListenSocket
	lastBatch atomic.Int64 // unix nanos of the last decoded batch
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex
}

// NewReceiver creates a receiver. Nothing is bound until Start.
func NewReceiver(factory transport.SocketFactory, cfg ReceiverConfig, handler BatchHandler) (*Receiver, error) {
	if factory == nil {
		return nil, fmt.Errorf("socket factory is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("batch handler is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	timeout := cfg.RecvTimeout
	if timeout <= 0 {
		timeout = DefaultRecvTimeout
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultRegistry()
	}

	return &Receiver{
		factory:     factory,
		addr:        cfg.Address,
		recvTimeout: timeout,
		handler:     handler,
		logger:      logging.OrDefault(cfg.Logger).With(logging.Component("receiver"), logging.Address(cfg.Address)),
		metrics:     m,
	}, nil
}

// Start binds the address and begins receiving batches.
func (r *Receiver) Start() error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if r.running {
		return nil
	}

	closers := transport.NewClosers(r.logger)
	defer closers.Release()

	socket, err := r.factory.NewPullSocket()
	if err != nil {
		return fmt.Errorf("failed to create pull socket: %w", err)
	}
	closers.Add("pull socket", socket)

	if err := socket.SetRecvDeadline(r.recvTimeout); err != nil {
		return fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := socket.Listen(r.addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.addr, err)
	}
	closers.Keep()

	ctx, cancel := context.WithCancel(context.Background())
	r.socket = socket
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.receiveLoop(ctx)

	r.logger.Info("write receiver started", logging.String("transport", r.factory.Name()))
	return nil
}

// Stop stops receiving and waits for the batch in flight to be handled.
func (r *Receiver) Stop() error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	r.running = false
	r.wg.Wait()
	err := r.socket.Close()

	r.logger.Info("write receiver stopped")
	return err
}

// Running reports whether the receiver is started
func (r *Receiver) Running() bool {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()
	return r.running
}

// LastBatch returns when the last well-formed batch arrived, or the zero
// time if none has.
func (r *Receiver) LastBatch() time.Time {
	n := r.lastBatch.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (r *Receiver) receiveLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := r.socket.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return
			}
			if !errors.Is(err, transport.ErrTimeout) {
				r.logger.Warn("receive failed", logging.Error(err))
			}
			continue
		}

		r.handleFrame(ctx, frame)
	}
}

func (r *Receiver) handleFrame(ctx context.Context, frame []byte) {
	start := time.Now()

	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		r.metrics.RecordReceive(metrics.StatusMalformed, 0, 0, 0)
		r.logger.Warn("dropping malformed frame", logging.Bytes(len(frame)), logging.Error(err))
		return
	}
	batch, err := env.Batch()
	if err != nil {
		r.metrics.RecordReceive(metrics.StatusMalformed, 0, 0, 0)
		r.logger.Warn("dropping malformed batch",
			logging.BatchID(env.BatchID),
			logging.ClientID(env.ClientID),
			logging.Error(err))
		return
	}

	r.lastBatch.Store(time.Now().UnixNano())

	d := Delivery{
		BatchID:    env.BatchID,
		ClientID:   env.ClientID,
		Codec:      env.Codec,
		Compressed: env.Compressed,
		SentAt:     time.Unix(0, env.Timestamp),
		WireBytes:  len(frame),
		Batch:      batch,
	}

	vertices, edges := batch.Counts()
	status := metrics.StatusOK
	if err := r.handler.HandleBatch(ctx, d); err != nil {
		status = metrics.StatusHandlerError
		r.logger.Error("batch handler failed",
			logging.BatchID(d.BatchID),
			logging.ClientID(d.ClientID),
			logging.Records(batch.Len()),
			logging.Error(err))
	}
	r.metrics.RecordReceive(status, vertices, edges, time.Since(start))
}
