package badger

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
//
// Ledger entries live under chkrec:<doc>:<generation>:<index>. Chunks with
// fallback embeddings are additionally indexed under chkfbk:<ledger key> so
// the re-embedding pass can find them without a full scan.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// PutChunks records the chunks of one ingestion generation.
func (r *ChunkRepository) PutChunks(ctx context.Context, generation int, chunks ...*core.Chunk) error {
	// vectors make entries large, so commit in slices to stay under badger's txn limit
	for batch := range slices.Chunk(chunks, putChunksBatch) {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range batch {
				key := makeChunkKey(chunk.DocumentID, generation, chunk.ChunkIndex)
				if err := writeChunk(tx, key, &storage.ChunkRecord{Generation: generation, Chunk: chunk}); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

const putChunksBatch = 200

// ChunksForDocument returns a document's ledger entries ordered by chunk index.
func (r *ChunkRepository) ChunksForDocument(ctx context.Context, id core.DocumentID, generation int) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanChunks(tx, makeChunkDocPrefix(id), func(key []byte, rec *storage.ChunkRecord) bool {
			if generation < 0 || rec.Generation == generation {
				result = append(result, rec.Chunk)
			}
			return true
		})
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b *core.Chunk) int {
		return a.ChunkIndex - b.ChunkIndex
	})
	return result, nil
}

// ChunkIDsBefore returns the ids of a document's chunks older than generation.
func (r *ChunkRepository) ChunkIDsBefore(ctx context.Context, id core.DocumentID, generation int) ([]string, error) {
	var ids []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanChunks(tx, makeChunkDocPrefix(id), func(key []byte, rec *storage.ChunkRecord) bool {
			if rec.Generation >= generation {
				return false
			}
			ids = append(ids, rec.Chunk.ID)
			return true
		})
	}, false)
	return ids, err
}

// DeleteChunksBefore removes ledger entries older than generation.
func (r *ChunkRepository) DeleteChunksBefore(ctx context.Context, id core.DocumentID, generation int) error {
	var stale [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeChunkDocPrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if chunkKeyGeneration(key) >= generation {
				break
			}
			stale = append(stale, key)
		}
		return nil
	}, false)
	if err != nil || len(stale) == 0 {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
			if err := tx.Delete(makeChunkFallbackKey(key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FallbackChunks returns up to limit fallback-embedded chunks after cursor.
// The cursor is the last fallback index key consumed.
func (r *ChunkRepository) FallbackChunks(ctx context.Context, after string, limit int) ([]*core.Chunk, string, error) {
	if limit <= 0 {
		limit = 100
	}
	var result []*core.Chunk
	var last []byte
	more := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkFallbackPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := []byte(chunkFallbackPrefix)
		if after != "" {
			start = []byte(after)
		}
		for iter.Seek(start); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().KeyCopy(nil)
			if after != "" && bytes.Equal(key, start) {
				continue
			}
			if len(result) == limit {
				more = true
				return nil
			}
			rec, err := readChunk(tx, key[len(chunkFallbackPrefix):])
			if err != nil {
				return err
			}
			last = key
			if rec != nil {
				result = append(result, rec.Chunk)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, "", err
	}
	if !more {
		return result, "", nil
	}
	return result, string(last), nil
}

// CountFallbackChunks counts ledger chunks carrying fallback embeddings.
func (r *ChunkRepository) CountFallbackChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkFallbackPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// UpdateEmbeddings replaces the embedding of existing ledger chunks.
// Only the embedding is taken from the given chunks; location data in the
// ledger is left untouched.
func (r *ChunkRepository) UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key, rec, err := findChunk(tx, chunk)
			if err != nil {
				return err
			}
			if rec == nil {
				return storage.ErrNotFound
			}
			rec.Chunk.Embedding = chunk.Embedding
			if err := writeChunk(tx, key, rec); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// findChunk locates a chunk's ledger entry by document and id.
func findChunk(tx *badger.Txn, chunk *core.Chunk) ([]byte, *storage.ChunkRecord, error) {
	var foundKey []byte
	var found *storage.ChunkRecord
	err := scanChunks(tx, makeChunkDocPrefix(chunk.DocumentID), func(key []byte, rec *storage.ChunkRecord) bool {
		if rec.Chunk.ID == chunk.ID {
			foundKey = key
			found = rec
			return false
		}
		return true
	})
	return foundKey, found, err
}

// writeChunk stores a ledger entry and maintains the fallback index.
func writeChunk(tx *badger.Txn, key []byte, rec *storage.ChunkRecord) error {
	if err := tx.Set(key, storage.MarshalChunkRecord(rec)); err != nil {
		return err
	}
	fallbackKey := makeChunkFallbackKey(key)
	if rec.Chunk.Embedding.IsFallback() {
		return tx.Set(fallbackKey, nil)
	}
	return tx.Delete(fallbackKey)
}

// scanChunks iterates ledger entries under prefix in key order until fn returns false.
func scanChunks(tx *badger.Txn, prefix []byte, fn func(key []byte, rec *storage.ChunkRecord) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		var rec *storage.ChunkRecord
		err := item.Value(func(val []byte) error {
			var err error
			rec, err = storage.UnmarshalChunkRecord(val)
			return err
		})
		if err != nil {
			return err
		}
		if !fn(item.KeyCopy(nil), rec) {
			return nil
		}
	}
	return nil
}

// readChunk reads a ledger entry. Returns nil, nil if the key doesn't exist.
func readChunk(tx *badger.Txn, key []byte) (*storage.ChunkRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec *storage.ChunkRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		rec, unmarshalErr = storage.UnmarshalChunkRecord(val)
		return unmarshalErr
	})
	return rec, err
}
