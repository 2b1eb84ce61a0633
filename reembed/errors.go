package reembed

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when no chunk ledger is provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when no primary embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
