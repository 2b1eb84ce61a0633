package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks(doc core.DocumentID, generation, n int, source core.EmbeddingSource) []*core.Chunk {
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			ID:          core.ChunkID(doc, generation, i+1),
			DocumentID:  doc,
			Content:     fmt.Sprintf("chunk %d", i+1),
			LineStart:   i*10 + 1,
			LineEnd:     i*10 + 10,
			ChunkIndex:  i + 1,
			TotalChunks: n,
			Embedding:   core.Embedding{Vector: []float32{1, 0}, Source: source},
		}
	}
	return chunks
}

func TestChunkRepository_PutAndList(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Chunks.PutChunks(ctx, 1, testChunks("d1", 1, 3, core.EmbeddingPrimary)...))
	require.NoError(t, repos.Chunks.PutChunks(ctx, 2, testChunks("d1", 2, 2, core.EmbeddingPrimary)...))
	require.NoError(t, repos.Chunks.PutChunks(ctx, 1, testChunks("d2", 1, 1, core.EmbeddingPrimary)...))

	gen1, err := repos.Chunks.ChunksForDocument(ctx, "d1", 1)
	require.NoError(t, err)
	require.Len(t, gen1, 3)
	assert.Equal(t, 1, gen1[0].ChunkIndex)
	assert.Equal(t, 3, gen1[2].ChunkIndex)

	all, err := repos.Chunks.ChunksForDocument(ctx, "d1", -1)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	t.Run("supersede older generations", func(t *testing.T) {
		ids, err := repos.Chunks.ChunkIDsBefore(ctx, "d1", 2)
		require.NoError(t, err)
		assert.Len(t, ids, 3)

		require.NoError(t, repos.Chunks.DeleteChunksBefore(ctx, "d1", 2))

		remaining, err := repos.Chunks.ChunksForDocument(ctx, "d1", -1)
		require.NoError(t, err)
		assert.Len(t, remaining, 2)

		other, err := repos.Chunks.ChunksForDocument(ctx, "d2", -1)
		require.NoError(t, err)
		assert.Len(t, other, 1, "other documents must be untouched")
	})
}

func TestChunkRepository_FallbackIndex(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Chunks.PutChunks(ctx, 1, testChunks("d1", 1, 5, core.EmbeddingFallback)...))
	require.NoError(t, repos.Chunks.PutChunks(ctx, 1, testChunks("d2", 1, 2, core.EmbeddingPrimary)...))

	count, err := repos.Chunks.CountFallbackChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	t.Run("paginates with cursor", func(t *testing.T) {
		var seen []string
		cursor := ""
		for {
			batch, next, err := repos.Chunks.FallbackChunks(ctx, cursor, 2)
			require.NoError(t, err)
			for _, c := range batch {
				seen = append(seen, c.ID)
			}
			if next == "" {
				break
			}
			cursor = next
		}
		assert.Len(t, seen, 5)
	})

	t.Run("upgrade removes from index", func(t *testing.T) {
		batch, _, err := repos.Chunks.FallbackChunks(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, batch, 2)

		for _, c := range batch {
			c.Embedding = core.Embedding{Vector: []float32{0, 1}, Source: core.EmbeddingPrimary, Model: "m"}
		}
		require.NoError(t, repos.Chunks.UpdateEmbeddings(ctx, batch...))

		count, err := repos.Chunks.CountFallbackChunks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		stored, err := repos.Chunks.ChunksForDocument(ctx, "d1", 1)
		require.NoError(t, err)
		assert.Equal(t, core.EmbeddingPrimary, stored[batch[0].ChunkIndex-1].Embedding.Source)
	})

	t.Run("update missing chunk", func(t *testing.T) {
		err := repos.Chunks.UpdateEmbeddings(ctx, &core.Chunk{ID: "nope", DocumentID: "d1"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestImageRepository(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Images.PutImages(ctx,
		&core.Image{DocumentID: "d1", Page: 2, Index: 0, Hash: "b"},
		&core.Image{DocumentID: "d1", Page: 1, Index: 1, Hash: "a2"},
		&core.Image{DocumentID: "d1", Page: 1, Index: 0, Hash: "a1"},
		&core.Image{DocumentID: "d2", Page: 1, Index: 0, Hash: "z"},
	))

	images, err := repos.Images.ImagesForDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, []string{"a1", "a2", "b"}, []string{images[0].Hash, images[1].Hash, images[2].Hash})
}
