package wire

import (
	"fmt"
	"maps"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// Field numbers of the write service messages.
const (
	// BatchWriteRequest
	fieldBatchClientID      protowire.Number = 1
	fieldBatchWriteRequests protowire.Number = 2

	// WriteRequest
	fieldWriteType       protowire.Number = 1
	fieldWriteDataRecord protowire.Number = 2

	// DataRecord
	fieldRecordVertexKey  protowire.Number = 1
	fieldRecordEdgeKey    protowire.Number = 2
	fieldRecordProperties protowire.Number = 3

	// VertexRecordKey
	fieldVertexLabel        protowire.Number = 1
	fieldVertexPKProperties protowire.Number = 2

	// EdgeRecordKey
	fieldEdgeLabel   protowire.Number = 1
	fieldEdgeSrcKey  protowire.Number = 2
	fieldEdgeDstKey  protowire.Number = 3
	fieldEdgeInnerID protowire.Number = 4

	// map<string, string> entry
	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2
)

// ProtoCodec encodes batches in protobuf wire format. Map fields are written
// in sorted key order so equal batches encode to equal bytes.
type ProtoCodec struct{}

// Name returns the codec name
func (ProtoCodec) Name() string { return CodecProto }

// Marshal encodes a batch request
func (ProtoCodec) Marshal(req writebatch.BatchRequest) ([]byte, error) {
	var b []byte
	if req.ClientID != "" {
		b = protowire.AppendTag(b, fieldBatchClientID, protowire.BytesType)
		b = protowire.AppendString(b, req.ClientID)
	}
	for i, wr := range req.WriteRequests {
		msg, err := appendWriteRequest(nil, wr)
		if err != nil {
			return nil, fmt.Errorf("write request %d: %w", i, err)
		}
		b = protowire.AppendTag(b, fieldBatchWriteRequests, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	return b, nil
}

func appendWriteRequest(b []byte, wr writebatch.WriteRequest) ([]byte, error) {
	if wr.WriteType != writebatch.WriteTypeUnknown {
		b = protowire.AppendTag(b, fieldWriteType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(wr.WriteType))
	}
	record, err := appendDataRecord(nil, wr.DataRecord)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, fieldWriteDataRecord, protowire.BytesType)
	return protowire.AppendBytes(b, record), nil
}

func appendDataRecord(b []byte, r writebatch.DataRecord) ([]byte, error) {
	switch key := r.Key.(type) {
	case writebatch.VertexKey:
		b = protowire.AppendTag(b, fieldRecordVertexKey, protowire.BytesType)
		b = protowire.AppendBytes(b, appendVertexKey(nil, key))
	case writebatch.EdgeKey:
		b = protowire.AppendTag(b, fieldRecordEdgeKey, protowire.BytesType)
		b = protowire.AppendBytes(b, appendEdgeKey(nil, key))
	default:
		return nil, fmt.Errorf("%w: record has no key", ErrMalformed)
	}
	return appendStringMap(b, fieldRecordProperties, r.Properties), nil
}

func appendVertexKey(b []byte, k writebatch.VertexKey) []byte {
	if k.Label != "" {
		b = protowire.AppendTag(b, fieldVertexLabel, protowire.BytesType)
		b = protowire.AppendString(b, k.Label)
	}
	return appendStringMap(b, fieldVertexPKProperties, k.PKProperties())
}

func appendEdgeKey(b []byte, k writebatch.EdgeKey) []byte {
	if k.Label != "" {
		b = protowire.AppendTag(b, fieldEdgeLabel, protowire.BytesType)
		b = protowire.AppendString(b, k.Label)
	}
	b = protowire.AppendTag(b, fieldEdgeSrcKey, protowire.BytesType)
	b = protowire.AppendBytes(b, appendVertexKey(nil, k.Src))
	b = protowire.AppendTag(b, fieldEdgeDstKey, protowire.BytesType)
	b = protowire.AppendBytes(b, appendVertexKey(nil, k.Dst))
	if k.InnerID != 0 {
		b = protowire.AppendTag(b, fieldEdgeInnerID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.InnerID))
	}
	return b
}

func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendString(entry, m[k])
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

// Unmarshal decodes a batch request. Unknown fields are skipped.
func (ProtoCodec) Unmarshal(data []byte) (writebatch.BatchRequest, error) {
	req := writebatch.BatchRequest{WriteRequests: []writebatch.WriteRequest{}}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldBatchClientID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			req.ClientID = v
			return n, nil
		case num == fieldBatchWriteRequests && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			wr, err := consumeWriteRequest(v)
			if err != nil {
				return 0, fmt.Errorf("write request %d: %w", len(req.WriteRequests), err)
			}
			req.WriteRequests = append(req.WriteRequests, wr)
			return n, nil
		}
		return skip, nil
	})
	if err != nil {
		return writebatch.BatchRequest{}, err
	}
	return req, nil
}

func consumeWriteRequest(data []byte) (writebatch.WriteRequest, error) {
	var wr writebatch.WriteRequest
	var sawRecord bool
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldWriteType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			wr.WriteType = writebatch.WriteType(v)
			return n, nil
		case num == fieldWriteDataRecord && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			record, err := consumeDataRecord(v)
			if err != nil {
				return 0, err
			}
			wr.DataRecord = record
			sawRecord = true
			return n, nil
		}
		return skip, nil
	})
	if err != nil {
		return wr, err
	}
	if !sawRecord {
		return wr, fmt.Errorf("%w: write request without data record", ErrMalformed)
	}
	return wr, nil
}

func consumeDataRecord(data []byte) (writebatch.DataRecord, error) {
	record := writebatch.DataRecord{Properties: writebatch.PropertyMap{}}
	keys := 0
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return skip, nil
		}
		switch num {
		case fieldRecordVertexKey:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			key, err := consumeVertexKey(v)
			if err != nil {
				return 0, err
			}
			record.Key = key
			keys++
			return n, nil
		case fieldRecordEdgeKey:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			key, err := consumeEdgeKey(v)
			if err != nil {
				return 0, err
			}
			record.Key = key
			keys++
			return n, nil
		case fieldRecordProperties:
			return consumeMapEntry(b, record.Properties)
		}
		return skip, nil
	})
	if err != nil {
		return record, err
	}
	if keys != 1 {
		return record, fmt.Errorf("%w: data record carries %d record keys", ErrMalformed, keys)
	}
	return record, nil
}

func consumeVertexKey(data []byte) (writebatch.VertexKey, error) {
	var key writebatch.VertexKey
	pk := map[string]string{}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return skip, nil
		}
		switch num {
		case fieldVertexLabel:
			v, n := protowire.ConsumeString(b)
			key.Label = v
			return n, nil
		case fieldVertexPKProperties:
			return consumeMapEntry(b, pk)
		}
		return skip, nil
	})
	if err != nil {
		return key, err
	}
	id, ok := pk[writebatch.PrimaryKeyName]
	if !ok {
		return key, fmt.Errorf("%w: vertex key %q lacks %q primary key", ErrMalformed, key.Label, writebatch.PrimaryKeyName)
	}
	key.ID = id
	return key, nil
}

func consumeEdgeKey(data []byte) (writebatch.EdgeKey, error) {
	var key writebatch.EdgeKey
	var sawSrc, sawDst bool
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldEdgeLabel && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			key.Label = v
			return n, nil
		case num == fieldEdgeInnerID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			key.InnerID = int64(v)
			return n, nil
		case (num == fieldEdgeSrcKey || num == fieldEdgeDstKey) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			vk, err := consumeVertexKey(v)
			if err != nil {
				return 0, err
			}
			if num == fieldEdgeSrcKey {
				key.Src, sawSrc = vk, true
			} else {
				key.Dst, sawDst = vk, true
			}
			return n, nil
		}
		return skip, nil
	})
	if err != nil {
		return key, err
	}
	if !sawSrc || !sawDst {
		return key, fmt.Errorf("%w: edge key %q missing an endpoint", ErrMalformed, key.Label)
	}
	return key, nil
}

// consumeMapEntry decodes one map<string,string> entry into m.
func consumeMapEntry(b []byte, m map[string]string) (int, error) {
	entry, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	var k, v string
	err := consumeFields(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return skip, nil
		}
		switch num {
		case fieldMapKey:
			s, n := protowire.ConsumeString(b)
			k = s
			return n, nil
		case fieldMapValue:
			s, n := protowire.ConsumeString(b)
			v = s
			return n, nil
		}
		return skip, nil
	})
	if err != nil {
		return 0, err
	}
	m[k] = v
	return n, nil
}

// skip tells consumeFields to discard the current field value.
const skip = 0

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// consumeFields walks the fields of one message. fn returns the number of
// bytes it consumed after the tag, or skip to have the value discarded.
func consumeFields(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m == skip {
			m = protowire.ConsumeFieldValue(num, typ, data)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}
