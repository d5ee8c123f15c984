package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

func sampleBatch() writebatch.BatchRequest {
	b := writebatch.NewBuilder()
	b.AddVertex("Person", "1", writebatch.PropertyMap{"name": "Alice", "age": "30"})
	b.AddEdge("knows", 42, "Person", "1", "Person", "2", writebatch.PropertyMap{})
	b.AddVertex("", "", nil)
	b.AddEdge("likes", -3, "Person", "2", "Item", "x", writebatch.PropertyMap{"w": ""})
	return b.AsRequest("c1")
}

func TestCodecRoundTrip(t *testing.T) {
	for _, codec := range []Codec{ProtoCodec{}, JSONCodec{}, JSONCodec{Indent: true}} {
		t.Run(codec.Name(), func(t *testing.T) {
			want := sampleBatch()

			data, err := codec.Marshal(want)
			require.NoError(t, err)

			got, err := codec.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestCodecEmptyBatch(t *testing.T) {
	for _, codec := range []Codec{ProtoCodec{}, JSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			want := writebatch.NewBuilder().AsDefaultRequest()

			data, err := codec.Marshal(want)
			require.NoError(t, err)

			got, err := codec.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, writebatch.DefaultClientID, got.ClientID)
			assert.NotNil(t, got.WriteRequests)
			assert.Empty(t, got.WriteRequests)
		})
	}
}

func TestProtoMarshalDeterministic(t *testing.T) {
	req := sampleBatch()
	a, err := ProtoCodec{}.Marshal(req)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		b, err := ProtoCodec{}.Marshal(req)
		require.NoError(t, err)
		require.True(t, bytes.Equal(a, b), "encoding %d differs", i)
	}
}

func TestProtoVertexLayout(t *testing.T) {
	b := writebatch.NewBuilder()
	b.AddVertex("Person", "1", writebatch.PropertyMap{"name": "Alice"})
	data, err := ProtoCodec{}.Marshal(b.AsRequest("c1"))
	require.NoError(t, err)

	entry := func(k, v string) []byte {
		var e []byte
		e = protowire.AppendTag(e, 1, protowire.BytesType)
		e = protowire.AppendString(e, k)
		e = protowire.AppendTag(e, 2, protowire.BytesType)
		return protowire.AppendString(e, v)
	}

	var vk []byte
	vk = protowire.AppendTag(vk, 1, protowire.BytesType)
	vk = protowire.AppendString(vk, "Person")
	vk = protowire.AppendTag(vk, 2, protowire.BytesType)
	vk = protowire.AppendBytes(vk, entry("id", "1"))

	var record []byte
	record = protowire.AppendTag(record, 1, protowire.BytesType)
	record = protowire.AppendBytes(record, vk)
	record = protowire.AppendTag(record, 3, protowire.BytesType)
	record = protowire.AppendBytes(record, entry("name", "Alice"))

	var wr []byte
	wr = protowire.AppendTag(wr, 1, protowire.VarintType)
	wr = protowire.AppendVarint(wr, 1)
	wr = protowire.AppendTag(wr, 2, protowire.BytesType)
	wr = protowire.AppendBytes(wr, record)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "c1")
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendBytes(want, wr)

	assert.Equal(t, want, data)
}

func TestProtoUnmarshalRejectsBadRecords(t *testing.T) {
	vertexKey := func(withID bool) []byte {
		var vk []byte
		vk = protowire.AppendTag(vk, fieldVertexLabel, protowire.BytesType)
		vk = protowire.AppendString(vk, "Person")
		if withID {
			var e []byte
			e = protowire.AppendTag(e, fieldMapKey, protowire.BytesType)
			e = protowire.AppendString(e, "id")
			e = protowire.AppendTag(e, fieldMapValue, protowire.BytesType)
			e = protowire.AppendString(e, "1")
			vk = protowire.AppendTag(vk, fieldVertexPKProperties, protowire.BytesType)
			vk = protowire.AppendBytes(vk, e)
		}
		return vk
	}
	edgeKey := func() []byte {
		var ek []byte
		ek = protowire.AppendTag(ek, fieldEdgeSrcKey, protowire.BytesType)
		ek = protowire.AppendBytes(ek, vertexKey(true))
		ek = protowire.AppendTag(ek, fieldEdgeDstKey, protowire.BytesType)
		return protowire.AppendBytes(ek, vertexKey(true))
	}
	wrap := func(record []byte) []byte {
		var wr []byte
		wr = protowire.AppendTag(wr, fieldWriteDataRecord, protowire.BytesType)
		wr = protowire.AppendBytes(wr, record)
		var batch []byte
		batch = protowire.AppendTag(batch, fieldBatchWriteRequests, protowire.BytesType)
		return protowire.AppendBytes(batch, wr)
	}

	var both []byte
	both = protowire.AppendTag(both, fieldRecordVertexKey, protowire.BytesType)
	both = protowire.AppendBytes(both, vertexKey(true))
	both = protowire.AppendTag(both, fieldRecordEdgeKey, protowire.BytesType)
	both = protowire.AppendBytes(both, edgeKey())

	var noID []byte
	noID = protowire.AppendTag(noID, fieldRecordVertexKey, protowire.BytesType)
	noID = protowire.AppendBytes(noID, vertexKey(false))

	tests := []struct {
		name string
		data []byte
	}{
		{"both keys", wrap(both)},
		{"no key", wrap(nil)},
		{"vertex without id", wrap(noID)},
		{"truncated", []byte{0x12, 0x05, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProtoCodec{}.Unmarshal(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestProtoUnmarshalSkipsUnknownFields(t *testing.T) {
	data, err := ProtoCodec{}.Marshal(sampleBatch())
	require.NoError(t, err)

	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)

	got, err := ProtoCodec{}.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, sampleBatch(), got)
}

func TestJSONFieldNames(t *testing.T) {
	b := writebatch.NewBuilder()
	b.AddEdge("knows", 42, "Person", "1", "Person", "2", nil)
	data, err := JSONCodec{}.Marshal(b.AsRequest("c1"))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	assert.Equal(t, "c1", generic["client_id"])
	requests := generic["write_requests"].([]any)
	require.Len(t, requests, 1)

	wr := requests[0].(map[string]any)
	assert.Equal(t, "INSERT", wr["write_type"])

	record := wr["data_record"].(map[string]any)
	assert.NotContains(t, record, "vertex_record_key")
	assert.Equal(t, map[string]any{}, record["properties"])

	ek := record["edge_record_key"].(map[string]any)
	assert.Equal(t, "knows", ek["label"])
	assert.Equal(t, float64(42), ek["inner_id"])
	assert.Equal(t, map[string]any{
		"label":         "Person",
		"pk_properties": map[string]any{"id": "2"},
	}, ek["dst_vertex_key"])
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("json")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, CodecProto, c.Name())

	_, err = CodecByName("avro")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
