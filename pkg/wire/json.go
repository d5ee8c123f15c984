package wire

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// BatchMessage is the JSON form of a batch request.
type BatchMessage struct {
	ClientID      string                `json:"client_id"`
	WriteRequests []WriteRequestMessage `json:"write_requests"`
}

// WriteRequestMessage is the JSON form of a write request
type WriteRequestMessage struct {
	WriteType  string            `json:"write_type"`
	DataRecord DataRecordMessage `json:"data_record"`
}

// DataRecordMessage carries exactly one of VertexRecordKey or EdgeRecordKey.
type DataRecordMessage struct {
	VertexRecordKey *VertexKeyMessage `json:"vertex_record_key,omitempty"`
	EdgeRecordKey   *EdgeKeyMessage   `json:"edge_record_key,omitempty"`
	Properties      map[string]string `json:"properties"`
}

// VertexKeyMessage is the JSON form of a vertex key
type VertexKeyMessage struct {
	Label        string            `json:"label"`
	PKProperties map[string]string `json:"pk_properties"`
}

// EdgeKeyMessage is the JSON form of an edge key
type EdgeKeyMessage struct {
	Label        string           `json:"label"`
	SrcVertexKey VertexKeyMessage `json:"src_vertex_key"`
	DstVertexKey VertexKeyMessage `json:"dst_vertex_key"`
	InnerID      int64            `json:"inner_id"`
}

// JSONCodec encodes batches as JSON.
type JSONCodec struct {
	Indent bool
}

// Name returns the codec name
func (JSONCodec) Name() string { return CodecJSON }

// Marshal encodes a batch request
func (c JSONCodec) Marshal(req writebatch.BatchRequest) ([]byte, error) {
	msg, err := ToMessage(req)
	if err != nil {
		return nil, err
	}
	if c.Indent {
		return json.MarshalIndent(msg, "", "  ")
	}
	return json.Marshal(msg)
}

// Unmarshal decodes a batch request
func (JSONCodec) Unmarshal(data []byte) (writebatch.BatchRequest, error) {
	var msg BatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return writebatch.BatchRequest{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromMessage(msg)
}

// ToMessage converts a batch request to its JSON message form.
func ToMessage(req writebatch.BatchRequest) (BatchMessage, error) {
	msg := BatchMessage{
		ClientID:      req.ClientID,
		WriteRequests: make([]WriteRequestMessage, 0, len(req.WriteRequests)),
	}
	for i, wr := range req.WriteRequests {
		record := DataRecordMessage{Properties: wr.DataRecord.Properties.Clone()}
		switch key := wr.DataRecord.Key.(type) {
		case writebatch.VertexKey:
			vk := vertexKeyMessage(key)
			record.VertexRecordKey = &vk
		case writebatch.EdgeKey:
			record.EdgeRecordKey = &EdgeKeyMessage{
				Label:        key.Label,
				SrcVertexKey: vertexKeyMessage(key.Src),
				DstVertexKey: vertexKeyMessage(key.Dst),
				InnerID:      key.InnerID,
			}
		default:
			return BatchMessage{}, fmt.Errorf("write request %d: %w: record has no key", i, ErrMalformed)
		}
		msg.WriteRequests = append(msg.WriteRequests, WriteRequestMessage{
			WriteType:  wr.WriteType.String(),
			DataRecord: record,
		})
	}
	return msg, nil
}

// FromMessage converts a JSON message back to a batch request.
func FromMessage(msg BatchMessage) (writebatch.BatchRequest, error) {
	req := writebatch.BatchRequest{
		ClientID:      msg.ClientID,
		WriteRequests: make([]writebatch.WriteRequest, 0, len(msg.WriteRequests)),
	}
	for i, wm := range msg.WriteRequests {
		record := writebatch.DataRecord{
			Properties: writebatch.PropertyMap(wm.DataRecord.Properties).Clone(),
		}

		vk, ek := wm.DataRecord.VertexRecordKey, wm.DataRecord.EdgeRecordKey
		switch {
		case vk != nil && ek == nil:
			key, err := vertexKeyFromMessage(*vk)
			if err != nil {
				return writebatch.BatchRequest{}, fmt.Errorf("write request %d: %w", i, err)
			}
			record.Key = key
		case ek != nil && vk == nil:
			src, err := vertexKeyFromMessage(ek.SrcVertexKey)
			if err != nil {
				return writebatch.BatchRequest{}, fmt.Errorf("write request %d: src: %w", i, err)
			}
			dst, err := vertexKeyFromMessage(ek.DstVertexKey)
			if err != nil {
				return writebatch.BatchRequest{}, fmt.Errorf("write request %d: dst: %w", i, err)
			}
			record.Key = writebatch.EdgeKey{Label: ek.Label, InnerID: ek.InnerID, Src: src, Dst: dst}
		default:
			return writebatch.BatchRequest{}, fmt.Errorf("write request %d: %w: expected exactly one record key", i, ErrMalformed)
		}

		req.WriteRequests = append(req.WriteRequests, writebatch.WriteRequest{
			WriteType:  writebatch.ParseWriteType(wm.WriteType),
			DataRecord: record,
		})
	}
	return req, nil
}

func vertexKeyMessage(k writebatch.VertexKey) VertexKeyMessage {
	return VertexKeyMessage{Label: k.Label, PKProperties: k.PKProperties()}
}

func vertexKeyFromMessage(m VertexKeyMessage) (writebatch.VertexKey, error) {
	id, ok := m.PKProperties[writebatch.PrimaryKeyName]
	if !ok {
		return writebatch.VertexKey{}, fmt.Errorf("%w: vertex key %q lacks %q primary key", ErrMalformed, m.Label, writebatch.PrimaryKeyName)
	}
	return writebatch.VertexKey{Label: m.Label, ID: id}, nil
}
