package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *writebatch.Builder)
		client  string
		wantErr string
	}{
		{
			name: "valid vertex and edge",
			build: func(b *writebatch.Builder) {
				b.AddVertex("Person", "1", writebatch.PropertyMap{"name": "Alice"})
				b.AddEdge("knows", 42, "Person", "1", "Person", "2", nil)
			},
			client: "c1",
		},
		{
			name:   "empty batch is valid",
			build:  func(b *writebatch.Builder) {},
			client: "c1",
		},
		{
			name:    "empty client id",
			build:   func(b *writebatch.Builder) { b.AddVertex("Person", "1", nil) },
			client:  "",
			wantErr: "ClientID: field is required",
		},
		{
			name:    "empty vertex id",
			build:   func(b *writebatch.Builder) { b.AddVertex("Person", "", nil) },
			client:  "c1",
			wantErr: "write request 0: ID: field is required",
		},
		{
			name:    "bad label characters",
			build:   func(b *writebatch.Builder) { b.AddVertex("Per son", "1", nil) },
			client:  "c1",
			wantErr: "contains invalid characters",
		},
		{
			name: "bad edge endpoint",
			build: func(b *writebatch.Builder) {
				b.AddVertex("Person", "1", nil)
				b.AddEdge("knows", 1, "Person", "1", "", "2", nil)
			},
			client:  "c1",
			wantErr: "write request 1: dst: Label: field is required",
		},
		{
			name:    "bad property key",
			build:   func(b *writebatch.Builder) { b.AddVertex("Person", "1", writebatch.PropertyMap{"1st": "x"}) },
			client:  "c1",
			wantErr: `property key "1st" is invalid`,
		},
		{
			name:    "negative inner id is fine",
			build:   func(b *writebatch.Builder) { b.AddEdge("knows", -1, "A", "1", "B", "2", nil) },
			client:  "c1",
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := writebatch.NewBuilder()
			tt.build(b)
			err := ValidateBatch(b.AsRequest(tt.client), DefaultLimits())

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateBatch() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateBatch() expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidBatch) {
				t.Errorf("error %v does not wrap ErrInvalidBatch", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateBatchLimits(t *testing.T) {
	limits := Limits{MaxBatchSize: 2, MaxLabelLength: 5, MaxIDLength: 3, MaxProperties: 1, MaxValueLength: 4}

	tests := []struct {
		name    string
		build   func(b *writebatch.Builder)
		wantErr string
	}{
		{"batch too large", func(b *writebatch.Builder) {
			for i := 0; i < 3; i++ {
				b.AddVertex("A", "1", nil)
			}
		}, "size 3 exceeds maximum 2"},
		{"label too long", func(b *writebatch.Builder) { b.AddVertex("Person", "1", nil) }, "Label: exceeds maximum length of 5"},
		{"id too long", func(b *writebatch.Builder) { b.AddVertex("A", "1234", nil) }, "ID: exceeds maximum length of 3"},
		{"too many properties", func(b *writebatch.Builder) {
			b.AddVertex("A", "1", writebatch.PropertyMap{"a": "1", "b": "2"})
		}, "maximum 1 properties"},
		{"value too long", func(b *writebatch.Builder) {
			b.AddVertex("A", "1", writebatch.PropertyMap{"a": "12345"})
		}, "Properties[a]: exceeds maximum length of 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := writebatch.NewBuilder()
			tt.build(b)
			err := ValidateBatch(b.AsDefaultRequest(), limits)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateBatch() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchRejectsNonInsert(t *testing.T) {
	req := writebatch.BatchRequest{
		ClientID: "c1",
		WriteRequests: []writebatch.WriteRequest{{
			WriteType:  writebatch.WriteTypeDelete,
			DataRecord: writebatch.DataRecord{Key: writebatch.VertexKey{Label: "A", ID: "1"}},
		}},
	}
	if err := ValidateBatch(req, DefaultLimits()); err == nil || !strings.Contains(err.Error(), "unsupported write type DELETE") {
		t.Errorf("ValidateBatch() error = %v", err)
	}
}
