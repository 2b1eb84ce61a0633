// Package fallback derives deterministic vectors from text when no real
// embedding service is reachable.
//
// The vectors carry no semantic signal. They exist so a chunk always has a
// vector of the expected shape; callers must record their provenance and
// keep them out of vector ranking.
package fallback

import (
	"context"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docscope/ai"
)

// Model is recorded as the embedding model of fallback vectors.
const Model = "fallback-blake2b"

// Embedder implements ai.Embedder without any network access.
type Embedder struct {
	dimension int
}

var _ ai.Embedder = (*Embedder)(nil)

// New returns a fallback embedder producing vectors of length dimension.
// A non-positive dimension selects ai.DefaultDimension.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = ai.DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Dimension returns the vector length this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Vector hashes text with blake2b-512 and spreads the digest bytes, scaled
// to [0,1], across the vector, repeating the digest as needed.
func (e *Embedder) Vector(text string) []float32 {
	digest := blake2b.Sum512([]byte(text))
	vector := make([]float32, e.dimension)
	for i := range vector {
		vector[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return vector
}

// EmbedText never fails.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.Vector(text), nil
}

// EmbedTexts never fails.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.Vector(text)
	}
	return vectors, nil
}
