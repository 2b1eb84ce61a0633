package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when an index is not provided.
	ErrIndexRequired = errors.New("index required")

	// ErrFilenameRequired is returned when an upload carries no filename.
	ErrFilenameRequired = errors.New("filename required")

	// ErrNoChunks is recorded when a document yields nothing to index.
	ErrNoChunks = errors.New("no chunks produced")

	// ErrInterrupted is recorded for documents left processing by a run
	// that never finished.
	ErrInterrupted = errors.New("ingestion interrupted before completion")
)
