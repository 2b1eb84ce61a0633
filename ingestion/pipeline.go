package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docscope/chunking"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/extract"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/locate"
	"github.com/poiesic/docscope/storage"
	"golang.org/x/time/rate"
)

// Defaults for embedding fan-out.
const (
	DefaultEmbeddingBatch       = 16
	DefaultEmbeddingConcurrency = 4
	DefaultEmbeddingDelay       = time.Second
)

// Extractor turns document bytes into pages. *extract.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, data []byte, kind extract.Kind) (*extract.Extraction, error)
}

// Embedder produces an embedding for one chunk and only fails when ctx
// ends. *ai.Resilient satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) (core.Embedding, error)
}

// Indexer is the chunk index. *index.Tiered satisfies it.
type Indexer interface {
	Upsert(ctx context.Context, chunks []*core.Chunk) (index.WriteResult, index.Outcome, error)
	Delete(ctx context.Context, ids []string) error
}

var _ Indexer = (*index.Tiered)(nil)

// Upload is a document handed to the pipeline.
type Upload struct {
	Path     string
	Filename string
	OwnerID  string
	// Scratch marks Path as a temporary copy the pipeline removes when done.
	Scratch bool
	// Force re-processes a document that is already ready.
	Force bool
}

// Pipeline orchestrates document ingestion: extraction, location mapping,
// chunking, embedding and indexing. Documents are processed on a worker
// pool; status is tracked in the document repository.
type Pipeline struct {
	documents  storage.DocumentRepository
	chunks     storage.ChunkRepository
	images     storage.ImageRepository
	extractor  Extractor
	chunker    *chunking.Chunker
	embedder   Embedder
	index      Indexer
	pool       *ants.Pool
	stages     []processor
	scratchDir string
	jobTimeout time.Duration

	embedBatch       int
	embedConcurrency int
	embedDelay       time.Duration
	embedLimiter     *rate.Limiter

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of documents processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithImageRepository stores extracted images and their analyses.
func WithImageRepository(images storage.ImageRepository) Option {
	return func(p *Pipeline) error {
		p.images = images
		return nil
	}
}

// WithScratchDir sets where Stage writes uploads. Default is os.TempDir().
func WithScratchDir(dir string) Option {
	return func(p *Pipeline) error {
		p.scratchDir = dir
		return nil
	}
}

// WithJobTimeout bounds the processing of one submitted document. Zero
// means no limit.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("job timeout must not be negative")
		}
		p.jobTimeout = d
		return nil
	}
}

// WithEmbedding sets how many chunks are embedded per batch, how many
// embedding calls run at once and the pause between batches.
func WithEmbedding(batch, concurrency int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		if batch < 1 || concurrency < 1 {
			return fmt.Errorf("embedding batch and concurrency must be greater than 0")
		}
		p.embedBatch = batch
		p.embedConcurrency = concurrency
		p.embedDelay = delay
		return nil
	}
}

// WithEmbeddingRateLimit caps embedding calls per second. Default is unlimited.
func WithEmbeddingRateLimit(requestsPerSecond int) Option {
	return func(p *Pipeline) error {
		if requestsPerSecond > 0 {
			p.embedLimiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	extractor Extractor,
	chunker *chunking.Chunker,
	embedder Embedder,
	idx Indexer,
	opts ...Option,
) (*Pipeline, error) {
	switch {
	case documents == nil:
		return nil, ErrDocumentRepositoryRequired
	case chunks == nil:
		return nil, ErrChunkRepositoryRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case chunker == nil:
		return nil, ErrChunkerRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case idx == nil:
		return nil, ErrIndexRequired
	}

	poolSize := max(1, runtime.NumCPU()/2)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents:        documents,
		chunks:           chunks,
		extractor:        extractor,
		chunker:          chunker,
		embedder:         embedder,
		index:            idx,
		pool:             pool,
		scratchDir:       os.TempDir(),
		embedBatch:       DefaultEmbeddingBatch,
		embedConcurrency: DefaultEmbeddingConcurrency,
		embedDelay:       DefaultEmbeddingDelay,
		embedLimiter:     rate.NewLimiter(rate.Inf, 0),
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// stages are built after options so they get the final config
	p.stages = []processor{
		newEmbeddingProcessor(embedder, p.embedBatch, p.embedConcurrency, p.embedDelay, p.embedLimiter, p.logger),
		newIndexProcessor(idx, chunks, p.logger),
	}
	return p, nil
}

// Stage writes uploaded bytes to a scratch file and returns the Upload
// describing it. The pipeline removes the file once processed.
func (p *Pipeline) Stage(data []byte, filename, ownerID string) (Upload, error) {
	if filename == "" {
		return Upload{}, ErrFilenameRequired
	}
	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return Upload{}, fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(p.scratchDir, uuid.NewString()+filepath.Ext(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Upload{}, fmt.Errorf("write scratch file: %w", err)
	}
	return Upload{Path: path, Filename: filename, OwnerID: ownerID, Scratch: true}, nil
}

// IndexDocument ingests the file at path synchronously. It returns true when
// the document ends ready. A document already ready with identical bytes
// and owner is not processed again.
func (p *Pipeline) IndexDocument(ctx context.Context, path, filename, ownerID string) (bool, error) {
	return p.IndexUpload(ctx, Upload{Path: path, Filename: filename, OwnerID: ownerID})
}

// IndexUpload is IndexDocument for an Upload.
func (p *Pipeline) IndexUpload(ctx context.Context, up Upload) (bool, error) {
	defer p.cleanup(up)

	data, doc, skip, err := p.register(ctx, up)
	if err != nil {
		return false, err
	}
	if skip {
		return true, nil
	}
	return p.process(ctx, doc.ID, data, up)
}

// Submit registers the upload and processes it on the worker pool. It
// returns as soon as the document is registered; poll the document
// repository for its status.
func (p *Pipeline) Submit(ctx context.Context, up Upload) (core.DocumentID, error) {
	data, doc, skip, err := p.register(ctx, up)
	if err != nil || skip {
		p.cleanup(up)
		if err != nil {
			return "", err
		}
		return doc.ID, nil
	}

	err = p.pool.Submit(func() {
		defer p.cleanup(up)

		jobCtx := context.Background()
		if p.jobTimeout > 0 {
			var cancel context.CancelFunc
			jobCtx, cancel = context.WithTimeout(jobCtx, p.jobTimeout)
			defer cancel()
		}
		if _, err := p.process(jobCtx, doc.ID, data, up); err != nil {
			p.logger.Error("error processing document", "document", doc.ID, "filename", up.Filename, "err", err)
		}
	})
	if err != nil {
		p.cleanup(up)
		p.fail(ctx, doc.ID, fmt.Errorf("submit: %w", err))
		return "", err
	}
	return doc.ID, nil
}

// register reads the upload and makes sure its document exists. skip is
// true when the document is already ready and Force is unset.
func (p *Pipeline) register(ctx context.Context, up Upload) ([]byte, *core.Document, bool, error) {
	if up.Filename == "" {
		return nil, nil, false, ErrFilenameRequired
	}
	data, err := os.ReadFile(up.Path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	id := core.DocumentIDFor(up.OwnerID, data)
	doc, err := p.documents.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		doc, err = p.documents.CreateDocument(ctx, &core.Document{ID: id, Name: up.Filename, OwnerID: up.OwnerID})
		if errors.Is(err, storage.ErrDuplicateKey) {
			doc, err = p.documents.GetDocument(ctx, id)
		}
	}
	if err != nil {
		return nil, nil, false, err
	}

	if doc.Status == core.StatusReady && !up.Force {
		p.logger.Info("document already indexed", "document", id, "filename", up.Filename)
		return nil, doc, true, nil
	}
	return data, doc, false, nil
}

// process runs one ingestion generation for a registered document.
func (p *Pipeline) process(ctx context.Context, id core.DocumentID, data []byte, up Upload) (bool, error) {
	doc, err := p.documents.Transition(ctx, id, core.StatusProcessing, "", func(d *core.Document) {
		d.Name = up.Filename
		d.Generation++
		d.TotalChunks, d.IndexedChunks, d.TotalTokens, d.ImageCount = 0, 0, 0, 0
	})
	if err != nil {
		return false, err
	}

	start := time.Now()
	p.logger.Info("processing document", "document", id, "filename", doc.Name, "generation", doc.Generation)

	j, err := p.run(ctx, doc, data)
	if err != nil {
		p.fail(ctx, id, err)
		return false, err
	}

	tokens := 0
	for _, c := range j.chunks {
		tokens += c.TokenCount
	}
	_, err = p.documents.Transition(context.WithoutCancel(ctx), id, core.StatusReady, "", func(d *core.Document) {
		d.PageCount = j.extraction.PageCount
		d.Method = j.extraction.Method
		d.TotalChunks = len(j.chunks)
		d.IndexedChunks = len(j.indexed)
		d.TotalTokens = tokens
		d.ImageCount = len(j.extraction.Images)
	})
	if err != nil {
		return false, err
	}

	p.logger.Info("document ready", "document", id, "chunks", len(j.chunks),
		"indexed", len(j.indexed), "method", j.extraction.Method, "elapsed", time.Since(start))
	return true, nil
}

// run extracts, maps and chunks the document, then applies every stage.
func (p *Pipeline) run(ctx context.Context, doc *core.Document, data []byte) (*job, error) {
	extraction, err := p.extractor.Extract(ctx, data, extract.KindFromFilename(doc.Name))
	if err != nil {
		return nil, err
	}

	lines := locate.Map(extraction.Pages)
	chunks := p.chunker.Chunk(chunking.Source{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		Filename:   doc.Name,
		Generation: doc.Generation,
	}, lines)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	for _, c := range chunks {
		if err := core.ValidateChunk(c, p.chunker.Budget()); err != nil {
			return nil, err
		}
	}
	p.logger.Debug("chunked document", "document", doc.ID, "pages", extraction.PageCount,
		"lines", len(lines), "chunks", len(chunks))

	p.storeImages(ctx, doc.ID, extraction.Images)

	j := &job{doc: doc, extraction: extraction, chunks: chunks}
	for _, stage := range p.stages {
		if err := stage.process(ctx, j); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (p *Pipeline) storeImages(ctx context.Context, id core.DocumentID, images []core.Image) {
	if p.images == nil || len(images) == 0 {
		return
	}
	records := make([]*core.Image, len(images))
	for i := range images {
		img := images[i]
		img.DocumentID = id
		records[i] = &img
	}
	if err := p.images.PutImages(ctx, records...); err != nil {
		p.logger.Warn("failed to store images", "document", id, "images", len(records), "err", err)
	}
}

// RecoverInterrupted marks every document still processing as failed so it
// can be ingested again. Call it before submitting work: a document that is
// processing at that point belongs to a run that was abandoned or killed.
func (p *Pipeline) RecoverInterrupted(ctx context.Context) (int, error) {
	docs, err := p.documents.ListDocuments(ctx, "")
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, doc := range docs {
		if doc.Status != core.StatusProcessing {
			continue
		}
		if _, err := p.documents.Transition(ctx, doc.ID, core.StatusFailed, ErrInterrupted.Error(), nil); err != nil {
			return recovered, fmt.Errorf("recover %s: %w", doc.ID, err)
		}
		p.logger.Warn("recovered interrupted document", "document", doc.ID, "filename", doc.Name)
		recovered++
	}
	return recovered, nil
}

// fail marks a document failed. It runs even when ctx has ended.
func (p *Pipeline) fail(ctx context.Context, id core.DocumentID, cause error) {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "ingestion timed out: " + msg
	}
	if _, err := p.documents.Transition(context.WithoutCancel(ctx), id, core.StatusFailed, msg, nil); err != nil {
		p.logger.Error("failed to record document failure", "document", id, "cause", cause, "err", err)
	}
}

func (p *Pipeline) cleanup(up Upload) {
	if !up.Scratch || up.Path == "" {
		return
	}
	if err := os.Remove(up.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove scratch file", "path", up.Path, "err", err)
	}
}

// Stats summarizes the current generation of a document.
func (p *Pipeline) Stats(ctx context.Context, id core.DocumentID) (*core.DocumentStats, error) {
	doc, err := p.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks, err := p.chunks.ChunksForDocument(ctx, id, doc.Generation)
	if err != nil {
		return nil, err
	}

	stats := &core.DocumentStats{DocumentID: id, Chunks: len(chunks)}
	for _, c := range chunks {
		stats.Tokens += c.TokenCount
		if stats.FirstPage == 0 || c.PageStart < stats.FirstPage {
			stats.FirstPage = c.PageStart
		}
		stats.LastPage = max(stats.LastPage, c.PageEnd)
		if c.Embedding.IsFallback() {
			stats.FallbackChunks++
		}
	}
	if p.images != nil {
		images, err := p.images.ImagesForDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		stats.Images = len(images)
	}
	return stats, nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
