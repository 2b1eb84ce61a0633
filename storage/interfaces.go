package storage

import (
	"context"

	"github.com/poiesic/docscope/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the repository and releases resources.
	Close() error
}

// DocumentRepository is the registry of uploaded documents and their
// ingestion status. Status transitions for a single document are serialized.
type DocumentRepository interface {
	Repository

	// CreateDocument registers a document in StatusPending.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.DocumentID) (*core.Document, error)

	// ListDocuments returns documents owned by owner, ordered by name.
	// An empty owner lists every document.
	ListDocuments(ctx context.Context, owner string) ([]*core.Document, error)

	// Transition moves a document to status `to`, applying mutate to the
	// stored copy inside the same transaction. errMsg is recorded when the
	// target status is StatusFailed and cleared otherwise.
	// Returns core.ErrInvalidTransition when the change is not allowed.
	Transition(ctx context.Context, id core.DocumentID, to core.DocumentStatus, errMsg string, mutate func(*core.Document)) (*core.Document, error)

	// DeleteDocument removes a document registration.
	DeleteDocument(ctx context.Context, id core.DocumentID) error
}

// ChunkRepository is the ledger of chunks written to the index, keyed by
// document and generation. It records embedding provenance so fallback
// vectors can be found and upgraded later.
type ChunkRepository interface {
	Repository

	// PutChunks records the chunks of one ingestion generation.
	PutChunks(ctx context.Context, generation int, chunks ...*core.Chunk) error

	// ChunksForDocument returns the ledger entries of a document for one
	// generation ordered by chunk index. generation < 0 returns all generations.
	ChunksForDocument(ctx context.Context, id core.DocumentID, generation int) ([]*core.Chunk, error)

	// ChunkIDsBefore returns the ids of a document's chunks older than generation.
	ChunkIDsBefore(ctx context.Context, id core.DocumentID, generation int) ([]string, error)

	// DeleteChunksBefore removes ledger entries older than generation.
	DeleteChunksBefore(ctx context.Context, id core.DocumentID, generation int) error

	// FallbackChunks returns up to limit chunks whose embedding came from
	// the fallback embedder, starting after the given ledger cursor.
	// The returned cursor is empty when iteration is complete.
	FallbackChunks(ctx context.Context, after string, limit int) ([]*core.Chunk, string, error)

	// CountFallbackChunks counts ledger chunks carrying fallback embeddings.
	CountFallbackChunks(ctx context.Context) (int, error)

	// UpdateEmbeddings replaces the embedding of existing ledger chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateEmbeddings(ctx context.Context, chunks ...*core.Chunk) error
}

// ImageRepository stores images extracted from documents.
type ImageRepository interface {
	Repository

	// PutImages stores image records, replacing existing ones at the same
	// document/page/index position.
	PutImages(ctx context.Context, images ...*core.Image) error

	// ImagesForDocument returns a document's images ordered by page and index.
	ImagesForDocument(ctx context.Context, id core.DocumentID) ([]*core.Image, error)
}
