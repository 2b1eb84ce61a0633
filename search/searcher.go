package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/scope"
)

// DefaultTop is the number of results returned when the caller asks for none.
const DefaultTop = 5

// Backend is the index the engine queries. index.Tiered satisfies it.
type Backend interface {
	Primary() index.Store
	Query(ctx context.Context, q index.Query) ([]index.Hit, index.Outcome, error)
}

var _ Backend = (*index.Tiered)(nil)

// Result is one chunk returned by a search.
type Result struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Filename      string  `json:"filename"`
	LineStart     int     `json:"line_start"`
	LineEnd       int     `json:"line_end"`
	LineReference string  `json:"line_reference"`
	ChunkIndex    int     `json:"chunk_index"`
	TotalChunks   int     `json:"total_chunks"`
	Score         float64 `json:"score"`
	// Precision is "exact" for lines taken from layout data and
	// "approximate" for lines derived from OCR or plain text. Empty when
	// unknown.
	Precision string `json:"precision,omitempty"`
}

// Response is the outcome of a search. A response with Error set but no Go
// error means every backend failed; ScopeViolation means the query was
// refused before reaching a backend. KeywordOnly means the backend that
// answered ranked without vectors.
type Response struct {
	Results        []Result `json:"results"`
	Backend        string   `json:"backend,omitempty"`
	Degraded       bool     `json:"degraded"`
	KeywordOnly    bool     `json:"keyword_only"`
	ScopeViolation bool     `json:"scope_violation,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// LineReference renders a chunk's line range for display.
func LineReference(start, end int) string {
	switch {
	case start <= 0:
		return "Lines unavailable"
	default:
		return fmt.Sprintf("Lines %d-%d", start, end)
	}
}

// Engine runs scoped hybrid searches. It holds no per-query state and is
// safe for concurrent use.
type Engine struct {
	backend  Backend
	embedder ai.Embedder
	ledger   Ledger
	top      int
	logger   *slog.Logger
}

// Ledger resolves chunk precision for hits from backends that do not
// store it. storage.ChunkRepository satisfies it.
type Ledger interface {
	ChunksForDocument(ctx context.Context, id core.DocumentID, generation int) ([]*core.Chunk, error)
}

// Option configures an Engine.
type Option func(*Engine) error

// WithEmbedder sets the embedder used for query vectors. It should be the
// primary embedder: a query embedding failure drops to keyword-only ranking
// instead of substituting a fallback vector.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(e *Engine) error {
		e.embedder = embedder
		return nil
	}
}

// WithLedger sets the chunk ledger used to fill in Result.Precision.
func WithLedger(ledger Ledger) Option {
	return func(e *Engine) error {
		e.ledger = ledger
		return nil
	}
}

// WithDefaultTop sets the result count used when Search is called with top <= 0.
func WithDefaultTop(top int) Option {
	return func(e *Engine) error {
		if top <= 0 {
			return ErrInvalidTop
		}
		e.top = top
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a search engine over backend.
func NewEngine(backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	e := &Engine{
		backend: backend,
		top:     DefaultTop,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")
	return e, nil
}

// Search returns up to top chunks matching query within s.
func (e *Engine) Search(ctx context.Context, query string, s scope.Scope, top int) (*Response, error) {
	return e.SearchWithMonitor(ctx, query, s, top, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
// The Go error is only set when ctx ends; backend failures are reported in
// the Response.
func (e *Engine) SearchWithMonitor(ctx context.Context, query string, s scope.Scope, top int, monitor SearchMonitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if top <= 0 {
		top = e.top
	}
	monitor.Start(query, s)

	resp := &Response{Results: []Result{}}
	query = strings.TrimSpace(query)
	if query == "" {
		monitor.Finish(resp)
		return resp, nil
	}

	// 1. Scope
	filter, err := scope.Build(s)
	if err != nil {
		e.logger.Warn("refusing search without owner in guarded mode", "document", s.DocumentName)
		resp.ScopeViolation = true
		monitor.Finish(resp)
		return resp, nil
	}
	monitor.AfterScope(filter)

	// 2. Query vector
	q := index.Query{Text: query, Filter: filter, Top: top}
	if e.embedder != nil && e.backend.Primary().Capabilities().Vector {
		vector, err := e.embedder.EmbedText(ctx, query)
		switch {
		case err == nil:
			q.Vector = vector
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			e.logger.Warn("query embedding failed, using keyword ranking",
				"err", errors.Join(core.ErrEmbeddingUnavailable, err))
		}
	}
	monitor.AfterEmbedding(len(q.Vector) > 0)

	// 3. Backend
	hits, outcome, err := e.backend.Query(ctx, q)
	resp.Backend = outcome.Backend
	resp.Degraded = outcome.Degraded
	resp.KeywordOnly = outcome.KeywordOnly
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("search failed on every backend", "err", err)
		resp.Degraded = true
		resp.Error = err.Error()
		monitor.Finish(resp)
		return resp, nil
	}
	monitor.AfterBackend(outcome, hits)

	// 4. Annotate
	for _, h := range hits {
		resp.Results = append(resp.Results, Result{
			ChunkID:       h.ID,
			DocumentID:    h.ParentID,
			Title:         h.Title,
			Content:       h.Content,
			Filename:      h.Filename,
			LineStart:     h.StartLine,
			LineEnd:       h.EndLine,
			LineReference: LineReference(h.StartLine, h.EndLine),
			ChunkIndex:    h.ChunkIndex,
			TotalChunks:   h.TotalChunks,
			Score:         h.Score,
			Precision:     h.Precision,
		})
	}
	if len(resp.Results) > top {
		resp.Results = resp.Results[:top]
	}
	e.fillPrecision(ctx, resp.Results)
	monitor.Finish(resp)
	return resp, nil
}

// fillPrecision looks up the precision of results the backend returned
// without one. Lookup failures leave the field empty.
func (e *Engine) fillPrecision(ctx context.Context, results []Result) {
	if e.ledger == nil {
		return
	}
	known := make(map[string]string)
	seen := make(map[string]bool)
	for i := range results {
		r := &results[i]
		if r.Precision != "" {
			continue
		}
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			chunks, err := e.ledger.ChunksForDocument(ctx, core.DocumentID(r.DocumentID), -1)
			if err != nil {
				e.logger.Warn("chunk precision lookup failed", "document", r.DocumentID, "err", err)
			}
			for _, c := range chunks {
				known[c.ID] = c.Precision.String()
			}
		}
		r.Precision = known[r.ChunkID]
	}
}
