package writebatch

import "maps"

// DefaultClientID is stamped on a batch when the caller does not name one.
const DefaultClientID = "DEFAULT"

// PrimaryKeyName is the single primary-key property carried by a vertex key.
const PrimaryKeyName = "id"

// WriteType identifies the mutation a write request performs.
type WriteType uint8

const (
	WriteTypeUnknown WriteType = iota
	WriteTypeInsert
	WriteTypeUpdate
	WriteTypeDelete
)

// String returns the wire name of the write type
func (t WriteType) String() string {
	switch t {
	case WriteTypeInsert:
		return "INSERT"
	case WriteTypeUpdate:
		return "UPDATE"
	case WriteTypeDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseWriteType converts a wire name to a WriteType
func ParseWriteType(s string) WriteType {
	switch s {
	case "INSERT", "insert":
		return WriteTypeInsert
	case "UPDATE", "update":
		return WriteTypeUpdate
	case "DELETE", "delete":
		return WriteTypeDelete
	default:
		return WriteTypeUnknown
	}
}

// PropertyMap holds the string-valued properties of a record.
type PropertyMap map[string]string

// Clone returns an independent copy. A nil map clones to an empty one so
// records always carry a usable map.
func (p PropertyMap) Clone() PropertyMap {
	if p == nil {
		return PropertyMap{}
	}
	return maps.Clone(p)
}

// RecordKey identifies the graph element a record targets. It is implemented
// only by VertexKey and EdgeKey.
type RecordKey interface {
	GetLabel() string
	isRecordKey()
}

// VertexKey identifies a vertex by label and its "id" primary key.
type VertexKey struct {
	Label string
	ID    string
}

func (VertexKey) isRecordKey() {}

// GetLabel returns the vertex label
func (k VertexKey) GetLabel() string { return k.Label }

// PKProperties returns the primary-key map sent on the wire.
func (k VertexKey) PKProperties() map[string]string {
	return map[string]string{PrimaryKeyName: k.ID}
}

// EdgeKey identifies an edge by label, endpoints and inner id.
type EdgeKey struct {
	Label   string
	InnerID int64
	Src     VertexKey
	Dst     VertexKey
}

func (EdgeKey) isRecordKey() {}

// GetLabel returns the edge label
func (k EdgeKey) GetLabel() string { return k.Label }

// DataRecord pairs a record key with its properties.
type DataRecord struct {
	Key        RecordKey
	Properties PropertyMap
}

// VertexKey returns the vertex key if the record targets a vertex.
func (r DataRecord) VertexKey() (VertexKey, bool) {
	k, ok := r.Key.(VertexKey)
	return k, ok
}

// EdgeKey returns the edge key if the record targets an edge.
func (r DataRecord) EdgeKey() (EdgeKey, bool) {
	k, ok := r.Key.(EdgeKey)
	return k, ok
}

// IsVertex reports whether the record targets a vertex
func (r DataRecord) IsVertex() bool {
	_, ok := r.Key.(VertexKey)
	return ok
}

// IsEdge reports whether the record targets an edge
func (r DataRecord) IsEdge() bool {
	_, ok := r.Key.(EdgeKey)
	return ok
}

// WriteRequest is a single mutation in a batch.
type WriteRequest struct {
	WriteType  WriteType
	DataRecord DataRecord
}

// BatchRequest is a finalized, ordered batch of write requests.
type BatchRequest struct {
	ClientID      string
	WriteRequests []WriteRequest
}

// Len returns the number of write requests in the batch
func (b BatchRequest) Len() int {
	return len(b.WriteRequests)
}

// Counts returns the number of vertex and edge records in the batch.
func (b BatchRequest) Counts() (vertices, edges int) {
	for _, wr := range b.WriteRequests {
		switch wr.DataRecord.Key.(type) {
		case VertexKey:
			vertices++
		case EdgeKey:
			edges++
		}
	}
	return vertices, edges
}
