// Package writebatch accumulates vertex and edge inserts into a single
// BatchRequest for the graph write service.
//
// A Builder is owned by one producer at a time and does no locking. The
// request returned by AsRequest shares no memory with the Builder and may be
// handed to another goroutine.
package writebatch

// Builder accumulates insert records until the batch is finalized.
type Builder struct {
	requests  []WriteRequest
	recordNum int
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// AddVertex queues a vertex insert. Inputs are not validated; rejecting bad
// labels or ids is left to the write service.
func (b *Builder) AddVertex(label, id string, props PropertyMap) {
	b.append(DataRecord{
		Key:        VertexKey{Label: label, ID: id},
		Properties: props.Clone(),
	})
}

// AddEdge queues an edge insert between two vertices. innerID is passed
// through verbatim.
func (b *Builder) AddEdge(label string, innerID int64, srcLabel, srcID, dstLabel, dstID string, props PropertyMap) {
	b.append(DataRecord{
		Key: EdgeKey{
			Label:   label,
			InnerID: innerID,
			Src:     VertexKey{Label: srcLabel, ID: srcID},
			Dst:     VertexKey{Label: dstLabel, ID: dstID},
		},
		Properties: props.Clone(),
	})
}

func (b *Builder) append(record DataRecord) {
	b.requests = append(b.requests, WriteRequest{
		WriteType:  WriteTypeInsert,
		DataRecord: record,
	})
	b.recordNum++
}

// Size returns the number of queued records
func (b *Builder) Size() int {
	return b.recordNum
}

// AsRequest finalizes the queued records into a BatchRequest tagged with
// clientID and leaves the builder empty. An empty builder yields a request
// with no write requests.
func (b *Builder) AsRequest(clientID string) BatchRequest {
	req := BatchRequest{
		ClientID:      clientID,
		WriteRequests: b.requests,
	}
	if req.WriteRequests == nil {
		req.WriteRequests = []WriteRequest{}
	}
	b.requests = nil
	b.recordNum = 0
	return req
}

// AsDefaultRequest finalizes the batch under DefaultClientID.
func (b *Builder) AsDefaultRequest() BatchRequest {
	return b.AsRequest(DefaultClientID)
}

// Clear discards all queued records
func (b *Builder) Clear() {
	b.requests = nil
	b.recordNum = 0
}
