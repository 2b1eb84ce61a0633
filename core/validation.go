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

package core

import (
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk against its location invariants.
//
// Validation rules:
//   - Content must not be blank
//   - LineStart must be >= 1 and <= LineEnd
//   - CharEnd must be >= CharStart
//   - TokenCount must not exceed budget when budget > 0
//   - ChunkIndex must be within 1..TotalChunks
//
// NOT validated:
//   - Embedding (attached after chunking)
//   - BBox (zero means unknown)
func ValidateChunk(chunk *Chunk, budget int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.LineStart < 1 || chunk.LineStart > chunk.LineEnd {
		return fmt.Errorf("%w: line range %d-%d", ErrInvalidChunk, chunk.LineStart, chunk.LineEnd)
	}
	if chunk.CharEnd < chunk.CharStart {
		return fmt.Errorf("%w: char range %d-%d", ErrInvalidChunk, chunk.CharStart, chunk.CharEnd)
	}
	if budget > 0 && chunk.TokenCount > budget {
		return fmt.Errorf("%w: %d tokens exceeds budget %d", ErrInvalidChunk, chunk.TokenCount, budget)
	}
	if chunk.ChunkIndex < 1 || chunk.ChunkIndex > chunk.TotalChunks {
		return fmt.Errorf("%w: index %d of %d", ErrInvalidChunk, chunk.ChunkIndex, chunk.TotalChunks)
	}
	return nil
}

// ValidateDocument validates a Document before it is registered.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyName)
	}
	return nil
}

// ValidateTransition checks a status change.
func ValidateTransition(from, to DocumentStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
