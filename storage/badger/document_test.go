package badger

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositories(t *testing.T) *Repositories {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	doc := &core.Document{ID: core.DocumentIDFromBytes([]byte("a")), Name: "deck.pdf", OwnerID: "u1"}
	created, err := repos.Documents.CreateDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repos.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "deck.pdf", got.Name)
	assert.Equal(t, "u1", got.OwnerID)

	t.Run("duplicate", func(t *testing.T) {
		_, err := repos.Documents.CreateDocument(ctx, doc)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repos.Documents.GetDocument(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := repos.Documents.CreateDocument(ctx, &core.Document{ID: "x"})
		assert.ErrorIs(t, err, core.ErrInvalidDocument)
	})
}

func TestDocumentRepository_Transition(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	doc, err := repos.Documents.CreateDocument(ctx, &core.Document{ID: "d1", Name: "scan.pdf"})
	require.NoError(t, err)

	processing, err := repos.Documents.Transition(ctx, doc.ID, core.StatusProcessing, "", func(d *core.Document) {
		d.Generation++
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, processing.Status)
	assert.Equal(t, 1, processing.Generation)

	failed, err := repos.Documents.Transition(ctx, doc.ID, core.StatusFailed, "ocr produced no usable text", nil)
	require.NoError(t, err)
	assert.Equal(t, "ocr produced no usable text", failed.Error)

	stored, err := repos.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Equal(t, "ocr produced no usable text", stored.Error)

	t.Run("retry clears error", func(t *testing.T) {
		retried, err := repos.Documents.Transition(ctx, doc.ID, core.StatusProcessing, "ignored", nil)
		require.NoError(t, err)
		assert.Empty(t, retried.Error)
	})

	t.Run("invalid transition", func(t *testing.T) {
		_, err := repos.Documents.Transition(ctx, doc.ID, core.StatusPending, "", nil)
		assert.ErrorIs(t, err, core.ErrInvalidTransition)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := repos.Documents.Transition(ctx, "nope", core.StatusProcessing, "", nil)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDocumentRepository_ConcurrentTransitions(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	_, err := repos.Documents.CreateDocument(ctx, &core.Document{ID: "d1", Name: "deck.pdf"})
	require.NoError(t, err)
	_, err = repos.Documents.Transition(ctx, "d1", core.StatusProcessing, "", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	const workers = 10
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.Documents.Transition(ctx, "d1", core.StatusProcessing, "", func(d *core.Document) {
				d.IndexedChunks++
			})
			// processing -> processing is not allowed, so every call must fail
			assert.ErrorIs(t, err, core.ErrInvalidTransition)
		}()
	}
	wg.Wait()

	stored, err := repos.Documents.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.IndexedChunks)
}

func TestDocumentRepository_List(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	for _, d := range []*core.Document{
		{ID: "1", Name: "b.pdf", OwnerID: "u1"},
		{ID: "2", Name: "a.pdf", OwnerID: "u1"},
		{ID: "3", Name: "c.pdf", OwnerID: "u2"},
	} {
		_, err := repos.Documents.CreateDocument(ctx, d)
		require.NoError(t, err)
	}

	all, err := repos.Documents.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repos.Documents.ListDocuments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a.pdf", mine[0].Name)
	assert.Equal(t, "b.pdf", mine[1].Name)

	require.NoError(t, repos.Documents.DeleteDocument(ctx, "1"))
	assert.ErrorIs(t, repos.Documents.DeleteDocument(ctx, "1"), storage.ErrNotFound)
}
