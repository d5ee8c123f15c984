// Package writeclient sends write batches to a graph write service and
// receives them on the service side.
//
// A Client frames each writebatch.BatchRequest in a wire.Envelope and pushes
// it over a transport socket. A Writer wraps a Client with a locked
// writebatch.Builder that flushes on size. A Receiver pulls frames, decodes
// them and hands each batch to a BatchHandler.
package writeclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/validation"
	"github.com/dd0wney/cluso-graphwriter/pkg/wire"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// Defaults applied by NewClient
const (
	DefaultSendTimeout  = 5 * time.Second
	DefaultRetryBackoff = 100 * time.Millisecond
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Address          string
	Codec            string // wire.CodecProto when empty
	Compression      bool
	SendTimeout      time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	StrictValidation bool
	Limits           validation.Limits // zero value means validation.DefaultLimits

	Logger  logging.Logger    // process default when nil
	Metrics *metrics.Registry // metrics.DefaultRegistry when nil
}

// SubmitResult describes a submitted batch.
type SubmitResult struct {
	BatchID   string
	Records   int
	RawBytes  int
	WireBytes int
	Attempts  int
	Skipped   bool // the batch was empty and nothing was sent
}

// Client pushes framed batches to a write service.
type Client struct {
	factory transport.SocketFactory
	cfg     ClientConfig
	codec   wire.Codec
	logger  logging.Logger
	metrics *metrics.Registry

	socket    transport.DialSocket
	sendMu    sync.Mutex
	running   bool
	closed    bool
	runningMu sync.RWMutex
}

// NewClient creates a client. No connection is made until Start.
func NewClient(factory transport.SocketFactory, cfg ClientConfig) (*Client, error) {
	if factory == nil {
		return nil, fmt.Errorf("socket factory is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	codec, err := wire.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be non-negative, got %d", cfg.MaxRetries)
	}

	cfg.SendTimeout = validation.DefaultOrDuration(cfg.SendTimeout, DefaultSendTimeout)
	cfg.RetryBackoff = validation.DefaultOrDuration(cfg.RetryBackoff, DefaultRetryBackoff)
	if cfg.Limits == (validation.Limits{}) {
		cfg.Limits = validation.DefaultLimits()
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultRegistry()
	}

	return &Client{
		factory: factory,
		cfg:     cfg,
		codec:   codec,
		logger:  logging.OrDefault(cfg.Logger).With(logging.Component("client"), logging.Address(cfg.Address)),
		metrics: m,
	}, nil
}

// Start connects to the write service.
func (c *Client) Start() error {
	c.runningMu.Lock()
	defer c.runningMu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.running {
		return nil
	}

	closers := transport.NewClosers(c.logger)
	defer closers.Release()

	socket, err := c.factory.NewPushSocket()
	if err != nil {
		return fmt.Errorf("failed to create push socket: %w", err)
	}
	closers.Add("push socket", socket)

	if err := socket.SetSendDeadline(c.cfg.SendTimeout); err != nil {
		return fmt.Errorf("failed to set send deadline: %w", err)
	}
	if err := socket.Dial(c.cfg.Address); err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.Address, err)
	}

	closers.Keep()
	c.socket = socket
	c.running = true
	c.logger.Info("write client connected",
		logging.String("transport", c.factory.Name()),
		logging.String("codec", c.codec.Name()))
	return nil
}

// Stop disconnects. A stopped client cannot be restarted.
func (c *Client) Stop() error {
	c.runningMu.Lock()
	defer c.runningMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if !c.running {
		return nil
	}
	c.running = false

	c.sendMu.Lock()
	err := c.socket.Close()
	c.sendMu.Unlock()

	c.logger.Info("write client stopped")
	return err
}

// Running reports whether the client is connected
func (c *Client) Running() bool {
	c.runningMu.RLock()
	defer c.runningMu.RUnlock()
	return c.running
}

// Submit frames req and sends it. Empty batches are skipped without touching
// the transport. Failed sends are retried up to MaxRetries times with a
// linear backoff; ctx bounds the whole call.
func (c *Client) Submit(ctx context.Context, req writebatch.BatchRequest) (SubmitResult, error) {
	c.runningMu.RLock()
	running, closed := c.running, c.closed
	c.runningMu.RUnlock()
	if closed {
		return SubmitResult{}, ErrClientClosed
	}
	if !running {
		return SubmitResult{}, ErrNotRunning
	}

	vertices, edges := req.Counts()
	if req.Len() == 0 {
		c.metrics.RecordSubmit(metrics.StatusSkipped, 0, 0, 0, 0, 0)
		c.logger.Debug("skipping empty batch", logging.ClientID(req.ClientID))
		return SubmitResult{Skipped: true}, nil
	}

	fail := func(err *ClientError) (SubmitResult, error) {
		err.Records = req.Len()
		c.metrics.RecordSubmit(metrics.StatusError, vertices, edges, 0, 0, 0)
		c.logger.Error("batch submit failed",
			logging.String("op", err.Op),
			logging.BatchID(err.BatchID),
			logging.ClientID(req.ClientID),
			logging.Records(req.Len()),
			logging.Error(err.Cause))
		return SubmitResult{BatchID: err.BatchID, Records: req.Len(), Attempts: err.Attempts}, err
	}

	if c.cfg.StrictValidation {
		if err := validation.ValidateBatch(req, c.cfg.Limits); err != nil {
			return fail(&ClientError{Op: "validate", Cause: err})
		}
	}

	env, err := wire.NewEnvelope(req, c.codec, c.cfg.Compression)
	if err != nil {
		return fail(&ClientError{Op: "encode", Cause: err})
	}
	frame, err := env.Encode()
	if err != nil {
		return fail(&ClientError{Op: "encode", BatchID: env.BatchID, Cause: err})
	}

	timer := logging.StartTimer(c.logger, "batch submitted",
		logging.BatchID(env.BatchID),
		logging.ClientID(req.ClientID),
		logging.Records(req.Len()))

	attempts, err := c.send(ctx, env.BatchID, frame)
	if err != nil {
		return fail(&ClientError{Op: "send", BatchID: env.BatchID, Attempts: attempts, Cause: err})
	}

	c.metrics.RecordSubmit(metrics.StatusSuccess, vertices, edges, env.RawSize, env.WireSize(), timer.Elapsed())
	timer.End(logging.Bytes(len(frame)), logging.Attempt(attempts))

	return SubmitResult{
		BatchID:   env.BatchID,
		Records:   req.Len(),
		RawBytes:  env.RawSize,
		WireBytes: env.WireSize(),
		Attempts:  attempts,
	}, nil
}

// send pushes frame, retrying transient failures. It returns the number of
// attempts made.
func (c *Client) send(ctx context.Context, batchID string, frame []byte) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		c.sendMu.Lock()
		err := c.socket.Send(frame)
		c.sendMu.Unlock()
		if err == nil {
			return attempt, nil
		}
		if errors.Is(err, transport.ErrClosed) {
			return attempt, err
		}
		lastErr = err

		if attempt > c.cfg.MaxRetries {
			break
		}

		c.metrics.RecordRetry()
		backoff := c.cfg.RetryBackoff * time.Duration(attempt)
		c.logger.Warn("batch send failed, retrying",
			logging.BatchID(batchID),
			logging.Attempt(attempt),
			logging.Duration("backoff", backoff),
			logging.Error(err))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, ctx.Err()
		case <-t.C:
		}
	}
	return c.cfg.MaxRetries + 1, lastErr
}
