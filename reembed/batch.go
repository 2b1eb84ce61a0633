package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/retry"
	"github.com/poiesic/docscope/storage"
)

// BatchResult counts the outcome of one batch.
type BatchResult struct {
	Upgraded int
	Failed   int
}

// BatchProcessor replaces fallback embeddings for batches of chunks.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	store          index.Store
	model          string
	dimension      int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// store is the vector index to re-upload to; nil updates the ledger only.
// dimension, when positive, rejects vectors of any other length.
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, store index.Store, config *Config, logger *slog.Logger) *BatchProcessor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		store:          store,
		model:          config.Model,
		dimension:      config.Dimension,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryDelay,
		logger:         logger,
	}
}

// Process embeds a batch with the primary embedder, uploads it and records
// the new embeddings. Chunks the index rejects keep their fallback marker
// and are counted failed. The batch errors only when embedding fails after
// every retry or the ledger cannot be updated.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) (BatchResult, error) {
	if len(chunks) == 0 {
		return BatchResult{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var vectors [][]float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
		}
		for i, v := range vectors {
			if bp.dimension > 0 && len(v) != bp.dimension {
				return retry.Permanent(fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), bp.dimension))
			}
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}

	upgraded := make([]*core.Chunk, len(chunks))
	for i, c := range chunks {
		u := *c
		u.Embedding = core.Embedding{
			Vector: normalize(vectors[i]),
			Source: core.EmbeddingPrimary,
			Model:  bp.model,
		}
		upgraded[i] = &u
	}

	if bp.store != nil {
		res, err := bp.store.Upsert(ctx, upgraded)
		if err != nil {
			if ctx.Err() != nil {
				return BatchResult{}, ctx.Err()
			}
			bp.logger.Warn("re-upload failed for some chunks", "written", res.Written, "failed", res.Failed(), "err", err)
			upgraded = without(upgraded, res.FailedIDs)
		}
	}

	if len(upgraded) > 0 {
		if err := bp.repo.UpdateEmbeddings(ctx, upgraded...); err != nil {
			return BatchResult{}, fmt.Errorf("failed to update ledger: %w", err)
		}
	}
	return BatchResult{Upgraded: len(upgraded), Failed: len(chunks) - len(upgraded)}, nil
}

// normalize scales v to unit length. A zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func without(chunks []*core.Chunk, ids []string) []*core.Chunk {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := chunks[:0]
	for _, c := range chunks {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept
}
