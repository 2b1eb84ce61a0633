package ingestion

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/docscope/core"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// embeddingProcessor attaches an embedding to every chunk. Chunks are
// embedded concurrently up to a cap, in batches separated by a delay.
type embeddingProcessor struct {
	embedder    Embedder
	batchSize   int
	concurrency int
	delay       time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder Embedder, batchSize, concurrency int, delay time.Duration, limiter *rate.Limiter, logger *slog.Logger) *embeddingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:    embedder,
		batchSize:   max(1, batchSize),
		concurrency: max(1, concurrency),
		delay:       delay,
		limiter:     limiter,
		logger:      logger.With("processor", "embeddings"),
	}
}

// process embeds the job's chunks. Embedder failures are absorbed by the
// embedder's fallback, so only cancellation stops it.
func (ep *embeddingProcessor) process(ctx context.Context, j *job) error {
	ep.logger.Info("embedding chunks", "document", j.doc.ID, "chunks", len(j.chunks))

	first := true
	fallbacks := 0
	for batch := range slices.Chunk(j.chunks, ep.batchSize) {
		if !first && ep.delay > 0 {
			timer := time.NewTimer(ep.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		first = false

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ep.concurrency)
		for _, chunk := range batch {
			g.Go(func() error {
				if err := ep.limiter.Wait(gctx); err != nil {
					return err
				}
				emb, err := ep.embedder.Embed(gctx, chunk.Content)
				if err != nil {
					return err
				}
				chunk.Embedding = emb
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, chunk := range batch {
			if chunk.Embedding.IsFallback() {
				fallbacks++
			}
		}
	}

	if fallbacks > 0 {
		ep.logger.Warn("chunks embedded with fallback vectors",
			"document", j.doc.ID, "fallback", fallbacks, "chunks", len(j.chunks), "err", core.ErrEmbeddingUnavailable)
	}
	return nil
}
