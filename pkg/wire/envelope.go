package wire

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// EnvelopeVersion is the frame layout version written by this package.
const EnvelopeVersion = 1

// Envelope frames one encoded batch on the transport.
type Envelope struct {
	Version    int    `json:"version"`
	BatchID    string `json:"batch_id"`
	ClientID   string `json:"client_id"`
	Timestamp  int64  `json:"timestamp"`
	Codec      string `json:"codec"`
	Compressed bool   `json:"compressed"`
	Records    int    `json:"records"`
	RawSize    int    `json:"raw_size"`
	Checksum   uint32 `json:"checksum"` // CRC32 (IEEE) of Data
	Data       []byte `json:"data"`
}

// NewEnvelope encodes req with codec and, if compress is set, snappy
// compresses the result. The envelope gets a fresh batch id.
func NewEnvelope(req writebatch.BatchRequest, codec Codec, compress bool) (*Envelope, error) {
	raw, err := codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	data := raw
	if compress {
		data = snappy.Encode(nil, raw)
	}

	return &Envelope{
		Version:    EnvelopeVersion,
		BatchID:    uuid.NewString(),
		ClientID:   req.ClientID,
		Timestamp:  time.Now().UnixNano(),
		Codec:      codec.Name(),
		Compressed: compress,
		Records:    req.Len(),
		RawSize:    len(raw),
		Checksum:   crc32.ChecksumIEEE(data),
		Data:       data,
	}, nil
}

// Encode serializes the envelope for sending
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a received frame. The payload is not decoded until
// Batch is called.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if e.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrMalformed, e.Version)
	}
	return &e, nil
}

// Batch verifies, decompresses and decodes the payload.
func (e *Envelope) Batch() (writebatch.BatchRequest, error) {
	if crc32.ChecksumIEEE(e.Data) != e.Checksum {
		return writebatch.BatchRequest{}, fmt.Errorf("%w: batch %s", ErrChecksum, e.BatchID)
	}

	codec, err := CodecByName(e.Codec)
	if err != nil {
		return writebatch.BatchRequest{}, err
	}

	raw := e.Data
	if e.Compressed {
		raw, err = snappy.Decode(nil, e.Data)
		if err != nil {
			return writebatch.BatchRequest{}, fmt.Errorf("%w: decompress: %v", ErrMalformed, err)
		}
	}

	req, err := codec.Unmarshal(raw)
	if err != nil {
		return writebatch.BatchRequest{}, err
	}
	if req.Len() != e.Records {
		return writebatch.BatchRequest{}, fmt.Errorf("%w: envelope announces %d records, payload has %d", ErrMalformed, e.Records, req.Len())
	}
	return req, nil
}

// WireSize returns the payload size on the wire
func (e *Envelope) WireSize() int {
	return len(e.Data)
}
