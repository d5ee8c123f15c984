package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/wire"
	"github.com/dd0wney/cluso-graphwriter/pkg/writeclient"
)

// logHandler logs every received batch and optionally echoes it as a JSON
// line.
type logHandler struct {
	logger logging.Logger

	mu  sync.Mutex
	out io.Writer // nil disables echo
}

func (h *logHandler) HandleBatch(_ context.Context, d writeclient.Delivery) error {
	vertices, edges := d.Batch.Counts()
	h.logger.Info("batch received",
		logging.BatchID(d.BatchID),
		logging.ClientID(d.ClientID),
		logging.String("codec", d.Codec),
		logging.Int("vertices", vertices),
		logging.Int("edges", edges),
		logging.Bytes(d.WireBytes),
		logging.Duration("transit", time.Since(d.SentAt)))

	if h.out == nil {
		return nil
	}

	msg, err := wire.ToMessage(d.Batch)
	if err != nil {
		return err
	}
	line, err := json.Marshal(struct {
		BatchID string `json:"batch_id"`
		wire.BatchMessage
	}{d.BatchID, msg})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(line, '\n'))
	return err
}
