package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// Mutation is one line of input.
//
//	{"kind":"vertex","label":"Person","id":"1","properties":{"name":"Alice"}}
//	{"kind":"edge","label":"knows","inner_id":7,"src_label":"Person","src_id":"1","dst_label":"Person","dst_id":"2"}
type Mutation struct {
	Kind       string            `json:"kind"`
	Label      string            `json:"label"`
	ID         string            `json:"id,omitempty"`
	InnerID    int64             `json:"inner_id,omitempty"`
	SrcLabel   string            `json:"src_label,omitempty"`
	SrcID      string            `json:"src_id,omitempty"`
	DstLabel   string            `json:"dst_label,omitempty"`
	DstID      string            `json:"dst_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// recordSink receives parsed mutations
type recordSink interface {
	AddVertex(ctx context.Context, label, id string, props writebatch.PropertyMap) error
	AddEdge(ctx context.Context, label string, innerID int64, srcLabel, srcID, dstLabel, dstID string, props writebatch.PropertyMap) error
}

// builderSink collects everything into one batch for -dry-run.
type builderSink struct {
	b *writebatch.Builder
}

func (s builderSink) AddVertex(_ context.Context, label, id string, props writebatch.PropertyMap) error {
	s.b.AddVertex(label, id, props)
	return nil
}

func (s builderSink) AddEdge(_ context.Context, label string, innerID int64, srcLabel, srcID, dstLabel, dstID string, props writebatch.PropertyMap) error {
	s.b.AddEdge(label, innerID, srcLabel, srcID, dstLabel, dstID, props)
	return nil
}

type loadStats struct {
	Vertices int
	Edges    int
}

const maxLineSize = 4 * 1024 * 1024

// loadMutations reads JSON lines from r into sink. Blank lines and lines
// starting with # are ignored.
func loadMutations(ctx context.Context, r io.Reader, sink recordSink) (loadStats, error) {
	var stats loadStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var m Mutation
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch m.Kind {
		case "vertex":
			if err := sink.AddVertex(ctx, m.Label, m.ID, m.Properties); err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			stats.Vertices++
		case "edge":
			if err := sink.AddEdge(ctx, m.Label, m.InnerID, m.SrcLabel, m.SrcID, m.DstLabel, m.DstID, m.Properties); err != nil {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			stats.Edges++
		default:
			return stats, fmt.Errorf("line %d: unknown kind %q (want vertex or edge)", lineNo, m.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read input: %w", err)
	}
	return stats, nil
}
