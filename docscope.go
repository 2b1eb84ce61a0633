// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docscope wires document ingestion and scoped search into one
// service: documents go in through IndexDocument or Submit, questions come
// out of Search.
package docscope

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/ai/fallback"
	"github.com/poiesic/docscope/ai/openai"
	"github.com/poiesic/docscope/chunking"
	"github.com/poiesic/docscope/config"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/extract"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/index/local"
	"github.com/poiesic/docscope/index/remote"
	"github.com/poiesic/docscope/ingestion"
	"github.com/poiesic/docscope/reembed"
	"github.com/poiesic/docscope/scope"
	"github.com/poiesic/docscope/search"
	"github.com/poiesic/docscope/storage/badger"
)

// ErrConfigRequired is returned by Open without a configuration.
var ErrConfigRequired = errors.New("config is required")

// OCREngine recognizes scanned pages. *ocr.Engine satisfies it.
type OCREngine interface {
	extract.OCR
	Release()
}

// Option configures Open.
type Option func(*options)

type options struct {
	embedder ai.Embedder
	ocr      OCREngine
	logger   *slog.Logger
}

// WithEmbedder replaces the configured embedding service.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithOCR enables OCR of scanned documents. The service releases the
// engine on Close.
func WithOCR(engine OCREngine) Option {
	return func(o *options) {
		o.ocr = engine
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// Service is an open docscope instance.
type Service struct {
	config   *config.Config
	repos    *badger.Repositories
	provider ai.Provider
	embedder *ai.Resilient
	index    *index.Tiered
	pipeline *ingestion.Pipeline
	engine   *search.Engine
	ocr      OCREngine
	logger   *slog.Logger
}

// Open builds every component described by cfg. The remote search tier is
// only used when cfg names an endpoint; the local index is always present.
func Open(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{config: cfg, ocr: o.ocr, logger: o.logger.With("component", "docscope")}
	if err := s.build(o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(o *options) error {
	cfg := s.config
	backend, err := badger.OpenBackend(cfg.Storage.Path, false)
	if err != nil {
		return err
	}
	s.repos, err = badger.NewRepositories(backend)
	if err != nil {
		backend.Close()
		return err
	}

	primary := o.embedder
	var analyzer ai.ImageAnalyzer
	if primary == nil || cfg.Images.Enabled {
		s.provider, err = openai.NewProvider(cfg.AI())
		if err != nil {
			return err
		}
		if primary == nil {
			primary = s.provider.Embedder()
		}
		analyzer = s.provider.ImageAnalyzer()
	}
	s.embedder = ai.NewResilient(primary, fallback.New(cfg.Embedding.Dimension),
		ai.WithModelNames(cfg.Embedding.Model, fallback.Model),
		ai.WithResilientLogger(o.logger))

	s.index, err = s.openIndex(o.logger)
	if err != nil {
		return err
	}

	extractOpts := []extract.Option{
		extract.WithMinTextLength(cfg.OCR.MinTextLength),
		extract.WithLogger(o.logger),
	}
	if o.ocr != nil && cfg.OCR.Enabled {
		extractOpts = append(extractOpts, extract.WithOCR(o.ocr))
	}
	if cfg.Images.Enabled {
		extractOpts = append(extractOpts, extract.WithImages(extract.PDFCPU{}, analyzer))
	}
	extractor, err := extract.New(extractOpts...)
	if err != nil {
		return err
	}

	chunker, err := chunking.New(
		chunking.WithTokenizer(s.tokenizer()),
		chunking.WithBudget(cfg.Chunking.Budget),
		chunking.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithImageRepository(s.repos.Images),
		ingestion.WithJobTimeout(cfg.Ingestion.JobTimeout.Duration),
		ingestion.WithEmbedding(cfg.Ingestion.EmbeddingBatch, cfg.Ingestion.EmbeddingConcurrency, cfg.Ingestion.EmbeddingDelay.Duration),
		ingestion.WithEmbeddingRateLimit(cfg.Embedding.RateLimit),
		ingestion.WithLogger(o.logger),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	if cfg.Storage.ScratchDir != "" {
		pipelineOpts = append(pipelineOpts, ingestion.WithScratchDir(cfg.Storage.ScratchDir))
	}
	s.pipeline, err = ingestion.NewPipeline(s.repos.Documents, s.repos.Chunks, extractor, chunker, s.embedder, s.index, pipelineOpts...)
	if err != nil {
		return err
	}
	if _, err := s.pipeline.RecoverInterrupted(context.Background()); err != nil {
		return err
	}

	s.engine, err = search.NewEngine(s.index,
		search.WithEmbedder(primary),
		search.WithLedger(s.repos.Chunks),
		search.WithDefaultTop(cfg.Search.DefaultTop),
		search.WithLogger(o.logger))
	return err
}

func (s *Service) openIndex(logger *slog.Logger) (*index.Tiered, error) {
	cfg := s.config
	localStore, err := local.Open(cfg.LocalIndexPath(), local.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var remoteStore index.Store
	if cfg.RemoteEnabled() {
		svc := cfg.SearchService
		rs, err := remote.New(svc.Endpoint, svc.Index, svc.APIKey,
			remote.WithAPIVersion(svc.APIVersion),
			remote.WithBatchSize(svc.BatchSize),
			remote.WithK(svc.K),
			remote.WithVectorField(svc.VectorField),
			remote.WithVectorQueries(svc.VectorQuery),
			remote.WithRetry(svc.MaxAttempts, svc.RetryDelay.Duration),
			remote.WithHTTPClient(&http.Client{Timeout: svc.Timeout.Duration}),
			remote.WithRateLimit(svc.RateLimit),
			remote.WithLogger(logger))
		if err != nil {
			localStore.Close()
			return nil, err
		}
		remoteStore = rs
	}

	return index.NewTiered(remoteStore, localStore,
		index.WithStrict(cfg.SearchService.Strict),
		index.WithMirror(cfg.SearchService.Mirror),
		index.WithLogger(logger))
}

// tokenizer picks the configured tokenizer. tiktoken falls back to word
// tokens when its encoding cannot be loaded.
func (s *Service) tokenizer() chunking.Tokenizer {
	if s.config.Chunking.Tokenizer == config.TokenizerWord {
		return chunking.WordTokenizer{}
	}
	tok, err := chunking.NewTiktokenTokenizer(s.config.Chunking.Encoding)
	if err != nil {
		s.logger.Warn("tiktoken unavailable, counting words instead", "encoding", s.config.Chunking.Encoding, "err", err)
		return chunking.WordTokenizer{}
	}
	return tok
}

// Config returns the configuration the service was opened with.
func (s *Service) Config() *config.Config {
	return s.config
}

// IndexDocument ingests the file at path and waits for the result. It
// returns true when the document ends ready.
func (s *Service) IndexDocument(ctx context.Context, path, filename, ownerID string) (bool, error) {
	return s.pipeline.IndexDocument(ctx, path, filename, ownerID)
}

// Submit stages uploaded bytes and processes them in the background. The
// returned id can be polled with Document.
func (s *Service) Submit(ctx context.Context, data []byte, filename, ownerID string) (core.DocumentID, error) {
	up, err := s.pipeline.Stage(data, filename, ownerID)
	if err != nil {
		return "", err
	}
	return s.pipeline.Submit(ctx, up)
}

// Search answers query within sc. A non-positive top uses the configured
// default.
func (s *Service) Search(ctx context.Context, query string, sc scope.Scope, top int) (*search.Response, error) {
	return s.engine.Search(ctx, query, sc, top)
}

// Document returns a document's registration and status.
func (s *Service) Document(ctx context.Context, id core.DocumentID) (*core.Document, error) {
	return s.repos.Documents.GetDocument(ctx, id)
}

// Documents lists the documents owned by ownerID, or every document when
// ownerID is empty.
func (s *Service) Documents(ctx context.Context, ownerID string) ([]*core.Document, error) {
	return s.repos.Documents.ListDocuments(ctx, ownerID)
}

// Stats summarizes the current generation of a document's chunks.
func (s *Service) Stats(ctx context.Context, id core.DocumentID) (*core.DocumentStats, error) {
	return s.pipeline.Stats(ctx, id)
}

// Reembed replaces fallback embeddings using the primary embedder and
// uploads them to the vector-capable index, if there is one. Progress is
// written to progress when non-nil.
func (s *Service) Reembed(ctx context.Context, cfg *reembed.Config, progress io.Writer) (*reembed.Summary, error) {
	run := reembed.DefaultConfig()
	if cfg != nil {
		run = new(reembed.Config)
		*run = *cfg
	}
	run.Model = s.config.Embedding.Model
	run.Dimension = s.config.Embedding.Dimension

	var store index.Store
	if p := s.index.Primary(); p.Capabilities().Vector {
		store = p
	}
	r, err := reembed.NewReembedder(s.repos.Chunks, s.embedder.Primary(), store, run, progress)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Close stops background work and releases every resource. Jobs still
// running are abandoned.
func (s *Service) Close() error {
	var errs []error
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.ocr != nil {
		s.ocr.Release()
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Error("error closing index", "err", err)
			errs = append(errs, err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}
	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
