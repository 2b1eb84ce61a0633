package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/docscope/ai/mock"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/index/local"
	"github.com/poiesic/docscope/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorStore wraps a local store, claims vector support and records the
// last query it received.
type vectorStore struct {
	*local.Store
	down bool
	last index.Query
}

func (v *vectorStore) Name() string { return "remote" }

func (v *vectorStore) Capabilities() index.Capabilities {
	return index.Capabilities{Keyword: true, Vector: true}
}

func (v *vectorStore) Query(ctx context.Context, q index.Query) ([]index.Hit, error) {
	v.last = q
	if v.down {
		return nil, errors.New("service unavailable")
	}
	return v.Store.Query(ctx, q)
}

func docChunks(doc, owner, filename string, contents ...string) []*core.Chunk {
	chunks := make([]*core.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &core.Chunk{
			ID:          core.ChunkID(core.DocumentID(doc), 1, i+1),
			DocumentID:  core.DocumentID(doc),
			OwnerID:     owner,
			Filename:    filename,
			Title:       filename,
			Content:     c,
			LineStart:   i*10 + 1,
			LineEnd:     i*10 + 10,
			ChunkIndex:  i + 1,
			TotalChunks: len(contents),
		}
	}
	return chunks
}

// setupCorpus indexes two documents from different owners into a local store.
func setupCorpus(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.Open("")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Upsert(ctx, docChunks("d1", "alice", "handbook.pdf",
		"employee benefits include health cover", "holiday policy"))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, docChunks("d2", "bob", "policy.pdf",
		"benefits are reviewed every year"))
	require.NoError(t, err)
	return store
}

func newEngine(t *testing.T, primary, secondary index.Store, opts ...Option) *Engine {
	t.Helper()
	tiered, err := index.NewTiered(primary, secondary)
	require.NoError(t, err)
	engine, err := NewEngine(tiered, opts...)
	require.NoError(t, err)
	return engine
}

func filenames(resp *Response) []string {
	var names []string
	for _, r := range resp.Results {
		names = append(names, r.Filename)
	}
	return names
}

func TestNewEngine(t *testing.T) {
	store := setupCorpus(t)
	tiered, err := index.NewTiered(store, nil)
	require.NoError(t, err)

	t.Run("valid configuration", func(t *testing.T) {
		engine, err := NewEngine(tiered)
		require.NoError(t, err)
		assert.NotNil(t, engine)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		engine, err := NewEngine(tiered, WithLogger(nil), WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, engine)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewEngine(nil)
		assert.Equal(t, ErrBackendRequired, err)
	})

	t.Run("invalid default top", func(t *testing.T) {
		_, err := NewEngine(tiered, WithDefaultTop(0))
		assert.Equal(t, ErrInvalidTop, err)
	})
}

func TestSearch_GuardedAndUnguarded(t *testing.T) {
	engine := newEngine(t, setupCorpus(t), nil)
	ctx := context.Background()

	resp, err := engine.Search(ctx, "benefits", scope.Scope{Mode: scope.Unguarded}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"handbook.pdf", "policy.pdf"}, filenames(resp))
	assert.Equal(t, local.Name, resp.Backend)
	assert.False(t, resp.Degraded)
	assert.True(t, resp.KeywordOnly, "the local store ranks without vectors")

	resp, err = engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"handbook.pdf"}, filenames(resp))

	t.Run("unguarded with document", func(t *testing.T) {
		resp, err := engine.Search(ctx, "benefits", scope.Scope{Mode: scope.Unguarded, DocumentName: "policy.pdf"}, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"policy.pdf"}, filenames(resp))
	})

	t.Run("guarded with another owner's document", func(t *testing.T) {
		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice", DocumentName: "policy.pdf"}, 10)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})
}

func TestSearch_GuardedWithoutOwner(t *testing.T) {
	remote := &vectorStore{Store: setupCorpus(t)}
	engine := newEngine(t, remote, nil)

	resp, err := engine.Search(context.Background(), "benefits", scope.Scope{Mode: scope.Guarded}, 10)
	require.NoError(t, err)
	assert.True(t, resp.ScopeViolation)
	assert.Empty(t, resp.Results)
	assert.Empty(t, remote.last.Text, "backend must not be queried")
}

func TestSearch_BlankQuery(t *testing.T) {
	engine := newEngine(t, setupCorpus(t), nil)
	resp, err := engine.Search(context.Background(), "  ", scope.Scope{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.ScopeViolation)
}

func TestSearch_Annotations(t *testing.T) {
	engine := newEngine(t, setupCorpus(t), nil)
	resp, err := engine.Search(context.Background(), "holiday", scope.Scope{OwnerID: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, core.ChunkID("d1", 1, 2), r.ChunkID)
	assert.Equal(t, "d1", r.DocumentID)
	assert.Equal(t, "Lines 11-20", r.LineReference)
	assert.Equal(t, 2, r.ChunkIndex)
	assert.Equal(t, 2, r.TotalChunks)
}

// strippedStore answers like a remote index, which does not store chunk
// precision.
type strippedStore struct {
	vectorStore
}

func (s *strippedStore) Query(ctx context.Context, q index.Query) ([]index.Hit, error) {
	hits, err := s.vectorStore.Query(ctx, q)
	for i := range hits {
		hits[i].Precision = ""
	}
	return hits, err
}

// mapLedger serves ledger chunks from memory.
type mapLedger struct {
	chunks map[core.DocumentID][]*core.Chunk
	calls  int
}

func (l *mapLedger) ChunksForDocument(ctx context.Context, id core.DocumentID, generation int) ([]*core.Chunk, error) {
	l.calls++
	return l.chunks[id], nil
}

func TestSearch_Precision(t *testing.T) {
	ctx := context.Background()
	chunks := docChunks("scan", "alice", "scanned.pdf", "benefits from ocr", "benefits from layout")
	chunks[0].Precision = core.PrecisionApproximate

	newStore := func(t *testing.T) *local.Store {
		store, err := local.Open("")
		require.NoError(t, err)
		_, err = store.Upsert(ctx, chunks)
		require.NoError(t, err)
		return store
	}
	byChunk := func(resp *Response) map[string]string {
		got := make(map[string]string)
		for _, r := range resp.Results {
			got[r.ChunkID] = r.Precision
		}
		return got
	}
	want := map[string]string{chunks[0].ID: "approximate", chunks[1].ID: "exact"}

	t.Run("local records carry precision", func(t *testing.T) {
		engine := newEngine(t, newStore(t), nil)
		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 5)
		require.NoError(t, err)
		assert.Equal(t, want, byChunk(resp))
	})

	t.Run("remote hits are resolved from the ledger", func(t *testing.T) {
		ledger := &mapLedger{chunks: map[core.DocumentID][]*core.Chunk{"scan": chunks}}
		remote := &strippedStore{vectorStore{Store: newStore(t)}}
		engine := newEngine(t, remote, nil, WithLedger(ledger))

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 5)
		require.NoError(t, err)
		assert.Equal(t, want, byChunk(resp))
		assert.Equal(t, 1, ledger.calls, "one lookup per document")
	})

	t.Run("unknown without a ledger", func(t *testing.T) {
		remote := &strippedStore{vectorStore{Store: newStore(t)}}
		engine := newEngine(t, remote, nil)

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 5)
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.Empty(t, r.Precision)
		}
	})
}

func TestSearch_QueryVector(t *testing.T) {
	ctx := context.Background()

	t.Run("primary embedder feeds vector backend", func(t *testing.T) {
		remote := &vectorStore{Store: setupCorpus(t)}
		embedder := mock.NewMockEmbedder(8)
		engine := newEngine(t, remote, nil, WithEmbedder(embedder))

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 3)
		require.NoError(t, err)
		assert.False(t, resp.KeywordOnly)
		assert.Len(t, remote.last.Vector, 8)
		assert.Equal(t, 3, remote.last.Top)
		assert.Equal(t, scope.Filter{Owner: "alice"}, remote.last.Filter)
	})

	t.Run("embedding failure drops to keyword ranking", func(t *testing.T) {
		remote := &vectorStore{Store: setupCorpus(t)}
		embedder := mock.NewMockEmbedder(8)
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding service down")
		}
		engine := newEngine(t, remote, nil, WithEmbedder(embedder))

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 3)
		require.NoError(t, err)
		assert.Nil(t, remote.last.Vector)
		assert.Len(t, resp.Results, 1)
	})

	t.Run("keyword-only backend is not embedded for", func(t *testing.T) {
		embedder := mock.NewMockEmbedder(8)
		engine := newEngine(t, setupCorpus(t), nil, WithEmbedder(embedder))

		_, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "alice"}, 3)
		require.NoError(t, err)
		assert.Zero(t, embedder.CallCount())
	})
}

func TestSearch_Fallback(t *testing.T) {
	ctx := context.Background()

	t.Run("remote down uses local", func(t *testing.T) {
		remote := &vectorStore{Store: setupCorpus(t), down: true}
		engine := newEngine(t, remote, setupCorpus(t))

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "bob"}, 5)
		require.NoError(t, err)
		assert.True(t, resp.Degraded)
		assert.Equal(t, local.Name, resp.Backend)
		assert.Equal(t, []string{"policy.pdf"}, filenames(resp))
		assert.True(t, resp.KeywordOnly)
		assert.Empty(t, resp.Error)
	})

	t.Run("every backend down", func(t *testing.T) {
		remote := &vectorStore{Store: setupCorpus(t), down: true}
		engine := newEngine(t, remote, nil)

		resp, err := engine.Search(ctx, "benefits", scope.Scope{OwnerID: "bob"}, 5)
		require.NoError(t, err)
		assert.True(t, resp.Degraded)
		assert.NotEmpty(t, resp.Error)
		assert.Empty(t, resp.Results)
	})
}

type recordingMonitor struct {
	noopMonitor
	stages []string
}

func (m *recordingMonitor) Start(string, scope.Scope)            { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterScope(scope.Filter)              { m.stages = append(m.stages, "scope") }
func (m *recordingMonitor) AfterEmbedding(bool)                  { m.stages = append(m.stages, "embedding") }
func (m *recordingMonitor) AfterBackend(index.Outcome, []index.Hit) { m.stages = append(m.stages, "backend") }
func (m *recordingMonitor) Finish(*Response)                     { m.stages = append(m.stages, "finish") }

func TestSearchWithMonitor(t *testing.T) {
	engine := newEngine(t, setupCorpus(t), nil)
	monitor := &recordingMonitor{}

	_, err := engine.SearchWithMonitor(context.Background(), "benefits", scope.Scope{OwnerID: "alice"}, 5, monitor)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "scope", "embedding", "backend", "finish"}, monitor.stages)
}

func TestLineReference(t *testing.T) {
	assert.Equal(t, "Lines 1-50", LineReference(1, 50))
	assert.Equal(t, "Lines 7-7", LineReference(7, 7))
	assert.Equal(t, "Lines 9-4", LineReference(9, 4))
	assert.Equal(t, "Lines unavailable", LineReference(0, 12))
	assert.Equal(t, "Lines unavailable", LineReference(-1, -1))
}
