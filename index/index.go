// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"context"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/scope"
)

// Record is the searchable form of a chunk, shared by every backend. The
// remote index adds the embedding vector and leaves out Precision; the
// local file stores exactly these fields.
type Record struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	OwnerID     string `json:"owner_id"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Precision   string `json:"precision,omitempty"`
}

// RecordFromChunk projects a chunk onto the index schema.
func RecordFromChunk(c *core.Chunk) Record {
	return Record{
		ID:          c.ID,
		ParentID:    string(c.DocumentID),
		Title:       c.Title,
		Content:     c.Content,
		Filename:    c.Filename,
		OwnerID:     c.OwnerID,
		StartLine:   c.LineStart,
		EndLine:     c.LineEnd,
		ChunkIndex:  c.ChunkIndex,
		TotalChunks: c.TotalChunks,
		Precision:   c.Precision.String(),
	}
}

// Hit is a record returned by a query with its backend-specific score.
type Hit struct {
	Record
	Score float64
}

// Query describes one search. Vector is optional; backends without vector
// support ignore it.
type Query struct {
	Text   string
	Vector []float32
	Filter scope.Filter
	Top    int
}

// Capabilities describes what a backend can rank on.
type Capabilities struct {
	Keyword bool
	Vector  bool
}

// WriteResult counts the outcome of an Upsert. FailedIDs lists the chunks
// that were not written.
type WriteResult struct {
	Written   int
	FailedIDs []string
}

// Failed returns the number of chunks not written.
func (r WriteResult) Failed() int {
	return len(r.FailedIDs)
}

// Store is a searchable chunk index.
//
// Upsert writes what it can. When some chunks fail the error wraps
// core.ErrIndexWrite and the result says which; when the backend cannot be
// reached at all the error also wraps core.ErrBackendUnavailable.
type Store interface {
	Name() string
	Capabilities() Capabilities
	Upsert(ctx context.Context, chunks []*core.Chunk) (WriteResult, error)
	Query(ctx context.Context, q Query) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	Close() error
}
