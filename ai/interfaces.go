package ai

import "context"

// Embedder converts text to fixed-dimension vectors.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageAnalyzer describes the contents of an image extracted from a document.
type ImageAnalyzer interface {
	// AnalyzeImage returns a text description of the image, including any
	// text, charts or diagrams it contains. mimeType is e.g. "image/png".
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Provider aggregates the remote AI services docscope uses.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ImageAnalyzer returns the image analysis service, or nil when
	// image analysis is disabled.
	ImageAnalyzer() ImageAnalyzer

	// Close releases resources held by the provider and its services.
	Close() error
}
