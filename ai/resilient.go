package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docscope/core"
)

// FallbackEmbedder is an Embedder that cannot fail and whose output should
// be marked as carrying no semantic signal.
type FallbackEmbedder interface {
	Embedder
	Dimension() int
}

// Resilient embeds through a primary Embedder and recovers from any primary
// failure with a fallback vector. Every embedding it returns has the
// fallback's dimension and records which path produced it.
type Resilient struct {
	primary  Embedder
	fallback FallbackEmbedder
	model    string
	fbModel  string
	logger   *slog.Logger
}

// ResilientOption configures a Resilient embedder.
type ResilientOption func(*Resilient)

// WithModelNames sets the model names recorded on primary and fallback embeddings.
func WithModelNames(primary, fallback string) ResilientOption {
	return func(r *Resilient) {
		r.model = primary
		r.fbModel = fallback
	}
}

// WithResilientLogger sets the logger. Nil selects slog.Default().
func WithResilientLogger(logger *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "embedder")
	}
}

// NewResilient combines primary and fallback. A nil primary means every
// embedding comes from the fallback.
func NewResilient(primary Embedder, fallback FallbackEmbedder, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		primary:  primary,
		fallback: fallback,
		fbModel:  "fallback",
		logger:   slog.Default().With("component", "embedder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Primary returns the primary embedder, or nil if none is configured.
func (r *Resilient) Primary() Embedder {
	return r.primary
}

// Dimension returns the length of every returned vector.
func (r *Resilient) Dimension() int {
	return r.fallback.Dimension()
}

// Embed embeds a single text. It only returns an error when ctx is done.
func (r *Resilient) Embed(ctx context.Context, text string) (core.Embedding, error) {
	embeddings, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return core.Embedding{}, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in one primary call. If the call fails, or returns
// a vector of the wrong shape, the affected texts get fallback vectors.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([]core.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]core.Embedding, len(texts))
	if len(texts) == 0 {
		return result, nil
	}

	var vectors [][]float32
	if r.primary != nil {
		var err error
		vectors, err = r.primary.EmbedTexts(ctx, texts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn("primary embedding failed, using fallback",
				"count", len(texts), "err", fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err))
			vectors = nil
		} else if len(vectors) != len(texts) {
			r.logger.Warn("primary embedding returned wrong count, using fallback",
				"want", len(texts), "got", len(vectors), "err", core.ErrEmbeddingUnavailable)
			vectors = nil
		}
	}

	dim := r.Dimension()
	for i, text := range texts {
		if vectors != nil && len(vectors[i]) == dim {
			result[i] = core.Embedding{Vector: vectors[i], Source: core.EmbeddingPrimary, Model: r.model}
			continue
		}
		if vectors != nil {
			r.logger.Warn("primary embedding has wrong dimension, using fallback",
				"index", i, "want", dim, "got", len(vectors[i]), "err", core.ErrEmbeddingUnavailable)
		}
		v, _ := r.fallback.EmbedText(ctx, text)
		result[i] = core.Embedding{Vector: v, Source: core.EmbeddingFallback, Model: r.fbModel}
	}
	return result, nil
}
