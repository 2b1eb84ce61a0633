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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Model is recorded as the provenance of upgraded embeddings
	Model string

	// Dimension, when positive, is the required vector length
	Dimension int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary reports what a run did.
type Summary struct {
	Total    int
	Upgraded int
	Failed   int
	Elapsed  time.Duration
}

// Reembedder upgrades every fallback-embedded chunk in the ledger.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *FallbackIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// store is the vector index chunks are re-uploaded to; nil updates the
// ledger only. progress is where to write progress output (typically
// os.Stderr); nil discards it.
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, store index.Store, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	logger := slog.Default().With("component", "reembed")
	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, store, config, logger),
		iterator:  NewFallbackIterator(repo, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run re-embeds every fallback chunk. A batch whose embedding call keeps
// failing stops the run; chunks already upgraded stay upgraded.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	total, err := r.repo.CountFallbackChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count fallback chunks: %w", err)
	}

	summary := &Summary{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No fallback embeddings to upgrade\n")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Upgrading %d fallback embeddings (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		res, err := r.processor.Process(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		summary.Upgraded += res.Upgraded
		summary.Failed += res.Failed
		tracker.Add(res.Upgraded, res.Failed)
		return nil
	})
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		return summary, err
	}

	tracker.Finish()
	r.logger.Info("reembedding complete", "upgraded", summary.Upgraded, "failed", summary.Failed, "elapsed", summary.Elapsed)
	fmt.Fprintf(r.progress, "Reembedding complete. Upgraded %d of %d chunks in %v\n",
		summary.Upgraded, total, summary.Elapsed.Round(time.Second))
	return summary, nil
}
