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

package reembed

import (
	"context"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// FallbackIterator walks ledger chunks carrying fallback embeddings.
type FallbackIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewFallbackIterator creates a new iterator.
// batchSize: number of chunks to fetch in each batch (must be > 0)
func NewFallbackIterator(repo storage.ChunkRepository, batchSize int) *FallbackIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &FallbackIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of fallback chunks. The cursor moves past
// every chunk handed to fn, so chunks fn leaves unchanged are not visited
// twice. Iteration stops on the first error from fn.
func (it *FallbackIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, next, err := it.repo.FallbackChunks(ctx, cursor, it.batchSize)
		if err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := fn(chunks); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}
