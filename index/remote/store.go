// Package remote implements index.Store over the Azure AI Search REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/retry"
	"golang.org/x/time/rate"
)

// Name identifies this backend in outcomes and logs.
const Name = "remote"

const (
	DefaultAPIVersion  = "2023-11-01"
	DefaultBatchSize   = 50
	DefaultK           = 50
	DefaultVectorField = "embedding_vector"
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 10
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// selectFields lists the fields returned by queries.
var selectFields = strings.Join([]string{
	"id", "parent_id", "title", "content", "filename", "owner_id",
	"start_line", "end_line", "chunk_index", "total_chunks",
}, ",")

// Store is an Azure AI Search index client.
type Store struct {
	endpoint    string
	indexName   string
	apiKey      string
	apiVersion  string
	batchSize   int
	k           int
	vectorField string
	vectors     bool
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ index.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithAPIVersion sets the REST API version.
func WithAPIVersion(v string) Option {
	return func(s *Store) {
		s.apiVersion = v
	}
}

// WithBatchSize sets how many documents each index request carries.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithK sets the number of nearest neighbours requested by vector queries.
func WithK(k int) Option {
	return func(s *Store) {
		if k > 0 {
			s.k = k
		}
	}
}

// WithVectorField sets the name of the index's vector field.
func WithVectorField(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.vectorField = name
		}
	}
}

// WithVectorQueries turns vector ranking on or off. When off the store
// reports keyword-only capabilities and never sends query vectors.
func WithVectorQueries(enabled bool) Option {
	return func(s *Store) {
		s.vectors = enabled
	}
}

// WithRetry sets how often a failed request is attempted and the base backoff.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Store) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		s.retryDelay = baseDelay
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithRateLimit sets a custom rate limit in requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(s *Store) {
		if requestsPerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// New creates a client for the index named indexName at endpoint, e.g.
// "https://myservice.search.windows.net".
func New(endpoint, indexName, apiKey string, opts ...Option) (*Store, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if indexName == "" {
		return nil, ErrIndexRequired
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	s := &Store{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		indexName:   indexName,
		apiKey:      apiKey,
		apiVersion:  DefaultAPIVersion,
		batchSize:   DefaultBatchSize,
		k:           DefaultK,
		vectorField: DefaultVectorField,
		vectors:     true,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "remote-index")
	return s, nil
}

func (s *Store) Name() string {
	return Name
}

func (s *Store) Capabilities() index.Capabilities {
	return index.Capabilities{Keyword: true, Vector: s.vectors}
}

func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// APIError is a non-success response from the search service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search service error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// indexResult is the per-document status of an index request.
type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

// Upsert uploads chunks in batches. A batch failing after retries counts
// all its chunks as failed; later batches still run. Chunks whose
// embedding is a fallback are uploaded without a vector so they only take
// part in keyword ranking.
func (s *Store) Upsert(ctx context.Context, chunks []*core.Chunk) (index.WriteResult, error) {
	var (
		result      index.WriteResult
		errs        []error
		unreachable bool
	)
	for batch := range slices.Chunk(chunks, s.batchSize) {
		docs := make([]map[string]any, len(batch))
		for i, c := range batch {
			docs[i] = s.document("upload", c)
		}

		statuses, err := s.indexDocuments(ctx, docs)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || retryable(apiErr.StatusCode) {
				unreachable = true
			}
			s.logger.Warn("index batch failed", "size", len(batch), "err", err)
			errs = append(errs, err)
			for _, c := range batch {
				result.FailedIDs = append(result.FailedIDs, c.ID)
			}
			continue
		}

		failed := make(map[string]string)
		for _, st := range statuses {
			if !st.Status {
				failed[st.Key] = st.ErrorMessage
			}
		}
		for _, c := range batch {
			if msg, ok := failed[c.ID]; ok {
				result.FailedIDs = append(result.FailedIDs, c.ID)
				errs = append(errs, fmt.Errorf("document %s: %s", c.ID, msg))
				continue
			}
			result.Written++
		}
	}

	if len(result.FailedIDs) == 0 {
		return result, nil
	}
	err := fmt.Errorf("%w: %d of %d chunks: %w", core.ErrIndexWrite, result.Failed(), len(chunks), errors.Join(errs...))
	if result.Written == 0 && unreachable {
		err = fmt.Errorf("%w: %w", core.ErrBackendUnavailable, err)
	}
	return result, err
}

// document builds the wire form of a chunk.
func (s *Store) document(action string, c *core.Chunk) map[string]any {
	rec := index.RecordFromChunk(c)
	doc := map[string]any{
		"@search.action": action,
		"id":             rec.ID,
		"parent_id":      rec.ParentID,
		"title":          rec.Title,
		"content":        rec.Content,
		"filename":       rec.Filename,
		"owner_id":       rec.OwnerID,
		"start_line":     rec.StartLine,
		"end_line":       rec.EndLine,
		"chunk_index":    rec.ChunkIndex,
		"total_chunks":   rec.TotalChunks,
	}
	if c.Embedding.Source == core.EmbeddingPrimary && len(c.Embedding.Vector) > 0 {
		doc[s.vectorField] = c.Embedding.Vector
	}
	return doc
}

func (s *Store) indexDocuments(ctx context.Context, docs []map[string]any) ([]indexResult, error) {
	var resp struct {
		Value []indexResult `json:"value"`
	}
	err := s.post(ctx, "/docs/index", map[string]any{"value": docs}, &resp, http.StatusOK, http.StatusMultiStatus)
	return resp.Value, err
}

// searchRequest is the body of a docs/search call.
type searchRequest struct {
	Search        string        `json:"search"`
	Filter        string        `json:"filter,omitempty"`
	Top           int           `json:"top,omitempty"`
	Select        string        `json:"select"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchHit struct {
	index.Record
	Score float64 `json:"@search.score"`
}

// Query runs a hybrid search: the text query always, plus a vector query
// when q.Vector is set.
func (s *Store) Query(ctx context.Context, q index.Query) ([]index.Hit, error) {
	req := searchRequest{
		Search: q.Text,
		Filter: q.Filter.OData(),
		Top:    q.Top,
		Select: selectFields,
	}
	if s.vectors && len(q.Vector) > 0 {
		req.VectorQueries = []vectorQuery{{
			Kind:   "vector",
			Vector: q.Vector,
			Fields: s.vectorField,
			K:      s.k,
		}}
	}

	var resp struct {
		Value []searchHit `json:"value"`
	}
	if err := s.post(ctx, "/docs/search", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	hits := make([]index.Hit, len(resp.Value))
	for i, h := range resp.Value {
		hits[i] = index.Hit{Record: h.Record, Score: h.Score}
	}
	return hits, nil
}

// Delete removes documents by key.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	var errs []error
	for batch := range slices.Chunk(ids, s.batchSize) {
		docs := make([]map[string]any, len(batch))
		for i, id := range batch {
			docs[i] = map[string]any{"@search.action": "delete", "id": id}
		}
		if _, err := s.indexDocuments(ctx, docs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// post sends body to the index endpoint path, retrying transport errors and
// retryable statuses, and decodes the response into result.
func (s *Store) post(ctx context.Context, path string, body, result any, accept ...int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	reqURL := fmt.Sprintf("%s/indexes/%s%s?api-version=%s",
		s.endpoint, url.PathEscape(s.indexName), path, url.QueryEscape(s.apiVersion))

	return retry.WithBackoff(ctx, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limit exceeded: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("api-key", s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		s.logger.Debug("search service request", "path", path, "bytes", len(payload))
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if !slices.Contains(accept, resp.StatusCode) {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(msg), Endpoint: path}
			if retryable(resp.StatusCode) {
				return apiErr
			}
			return retry.Permanent(apiErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}, s.maxAttempts, s.retryDelay)
}
