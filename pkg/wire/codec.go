// Package wire encodes finalized write batches for the graph write service.
//
// Two codecs are provided. ProtoCodec produces the protobuf wire format the
// write service consumes; JSONCodec produces the same message with
// snake_case field names and is used for dry runs and debugging.
package wire

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// Sentinel errors
var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrMalformed    = errors.New("malformed batch")
	ErrChecksum     = errors.New("envelope checksum mismatch")
)

// Codec names
const (
	CodecProto = "proto"
	CodecJSON  = "json"
)

// Codec converts batch requests to and from bytes.
type Codec interface {
	Name() string
	Marshal(req writebatch.BatchRequest) ([]byte, error)
	Unmarshal(data []byte) (writebatch.BatchRequest, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecProto, "":
		return ProtoCodec{}, nil
	case CodecJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
