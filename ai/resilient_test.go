package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/ai/fallback"
	"github.com/poiesic/docscope/ai/mock"
	"github.com/poiesic/docscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 16

func TestResilientPrimary(t *testing.T) {
	primary := mock.NewMockEmbedder(dim)
	r := ai.NewResilient(primary, fallback.New(dim), ai.WithModelNames("ada", "fb"))

	emb, err := r.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingPrimary, emb.Source)
	assert.Equal(t, "ada", emb.Model)
	assert.Equal(t, mock.DeterministicVector("hello", dim), emb.Vector)
	assert.Equal(t, 1, primary.CallCount())
}

func TestResilientFallsBackOnError(t *testing.T) {
	primary := mock.NewMockEmbedder(dim)
	primary.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("401 unauthorized")
	}
	fb := fallback.New(dim)
	r := ai.NewResilient(primary, fb)

	embs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embs, 2)
	for i, text := range []string{"a", "b"} {
		assert.True(t, embs[i].IsFallback())
		assert.Equal(t, fb.Vector(text), embs[i].Vector)
		assert.Len(t, embs[i].Vector, dim)
	}
}

func TestResilientFallsBackOnWrongDimension(t *testing.T) {
	primary := mock.NewMockEmbedder(dim)
	primary.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{make([]float32, dim), make([]float32, dim-1)}, nil
	}
	r := ai.NewResilient(primary, fallback.New(dim))

	embs, err := r.EmbedBatch(context.Background(), []string{"ok", "short"})
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingPrimary, embs[0].Source)
	assert.Equal(t, core.EmbeddingFallback, embs[1].Source)
	assert.Len(t, embs[1].Vector, dim)
}

func TestResilientFallsBackOnWrongCount(t *testing.T) {
	primary := mock.NewMockEmbedder(dim)
	primary.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{make([]float32, dim)}, nil
	}
	r := ai.NewResilient(primary, fallback.New(dim))

	embs, err := r.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.True(t, embs[0].IsFallback())
	assert.True(t, embs[1].IsFallback())
}

func TestResilientWithoutPrimary(t *testing.T) {
	r := ai.NewResilient(nil, fallback.New(dim))
	assert.Nil(t, r.Primary())

	emb, err := r.Embed(context.Background(), "offline")
	require.NoError(t, err)
	assert.True(t, emb.IsFallback())
	assert.Len(t, emb.Vector, dim)
}

func TestResilientCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := ai.NewResilient(mock.NewMockEmbedder(dim), fallback.New(dim))

	_, err := r.Embed(ctx, "late")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResilientEmptyBatch(t *testing.T) {
	primary := mock.NewMockEmbedder(dim)
	r := ai.NewResilient(primary, fallback.New(dim))

	embs, err := r.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, embs)
	assert.Equal(t, 0, primary.CallCount())
}
