package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
)

// indexProcessor writes chunks to the index, records the ones accepted in
// the ledger and removes chunks of earlier generations.
type indexProcessor struct {
	index  Indexer
	chunks storage.ChunkRepository
	logger *slog.Logger
}

var _ processor = (*indexProcessor)(nil)

func newIndexProcessor(idx Indexer, chunks storage.ChunkRepository, logger *slog.Logger) *indexProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &indexProcessor{
		index:  idx,
		chunks: chunks,
		logger: logger.With("processor", "index"),
	}
}

// process fails only when no chunk was indexed. Partial write failures are
// logged and counted.
func (ip *indexProcessor) process(ctx context.Context, j *job) error {
	res, outcome, err := ip.index.Upsert(ctx, j.chunks)
	if res.Written == 0 {
		if err == nil {
			err = core.ErrIndexWrite
		}
		return fmt.Errorf("no chunks indexed: %w", err)
	}
	if outcome.Degraded {
		ip.logger.Warn("indexed through fallback backend",
			"document", j.doc.ID, "backend", outcome.Backend, "err", outcome.PrimaryErr)
	}
	if err != nil {
		ip.logger.Warn("some chunks were not indexed",
			"document", j.doc.ID, "written", res.Written, "failed", res.Failed(), "err", err)
	}

	failed := make(map[string]bool, res.Failed())
	for _, id := range res.FailedIDs {
		failed[id] = true
	}
	for _, c := range j.chunks {
		if !failed[c.ID] {
			j.indexed = append(j.indexed, c)
		}
	}

	if err := ip.chunks.PutChunks(ctx, j.doc.Generation, j.indexed...); err != nil {
		return fmt.Errorf("record chunks: %w", err)
	}
	ip.supersede(ctx, j.doc)
	return nil
}

// supersede deletes chunks from earlier generations. Failures leave stale
// chunks searchable and are only logged.
func (ip *indexProcessor) supersede(ctx context.Context, doc *core.Document) {
	stale, err := ip.chunks.ChunkIDsBefore(ctx, doc.ID, doc.Generation)
	if err != nil {
		ip.logger.Warn("failed to list superseded chunks", "document", doc.ID, "err", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	if err := ip.index.Delete(ctx, stale); err != nil {
		ip.logger.Warn("failed to delete superseded chunks from index", "document", doc.ID, "chunks", len(stale), "err", err)
		return
	}
	if err := ip.chunks.DeleteChunksBefore(ctx, doc.ID, doc.Generation); err != nil {
		ip.logger.Warn("failed to delete superseded ledger entries", "document", doc.ID, "err", err)
		return
	}
	ip.logger.Debug("superseded previous generation", "document", doc.ID, "chunks", len(stale))
}
