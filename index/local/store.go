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

// Package local implements index.Store as a keyword-only index persisted
// in a single JSON file.
//
// The file holds a flat array of index.Record values, the remote schema
// without the embedding. It is read wholesale at Open and rewritten
// atomically after every change.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/index"
)

// Name identifies this backend in outcomes and logs.
const Name = "local"

// Store is a file-backed keyword index. The zero path keeps records in
// memory only.
type Store struct {
	path    string
	mu      sync.RWMutex
	records []index.Record
	byID    map[string]int
	logger  *slog.Logger
}

var _ index.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

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

// Open loads the index file at path. A missing file is an empty index.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		byID:   make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "local-index")

	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local index: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("parse local index %s: %w", path, err)
		}
	}
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
	s.logger.Debug("loaded local index", "path", path, "records", len(s.records))
	return s, nil
}

func (s *Store) Name() string {
	return Name
}

func (s *Store) Capabilities() index.Capabilities {
	return index.Capabilities{Keyword: true}
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upsert appends new records and replaces records with a known id. If the
// file cannot be written the in-memory index is left unchanged.
func (s *Store) Upsert(ctx context.Context, chunks []*core.Chunk) (index.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return failedAll(chunks), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := slices.Clone(s.records)
	byID := make(map[string]int, len(s.byID)+len(chunks))
	for id, i := range s.byID {
		byID[id] = i
	}
	for _, c := range chunks {
		rec := index.RecordFromChunk(c)
		if i, ok := byID[rec.ID]; ok {
			records[i] = rec
			continue
		}
		byID[rec.ID] = len(records)
		records = append(records, rec)
	}

	if err := s.persist(records); err != nil {
		return failedAll(chunks), fmt.Errorf("%w: %w", core.ErrIndexWrite, err)
	}
	s.records, s.byID = records, byID
	return index.WriteResult{Written: len(chunks)}, nil
}

// Query ranks matching records by score, keeping insertion order on ties.
// The query vector is ignored.
func (s *Store) Query(ctx context.Context, q index.Query) ([]index.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := terms(q.Text)

	s.mu.RLock()
	var hits []index.Hit
	for _, r := range s.records {
		if !q.Filter.Match(r.OwnerID, r.Filename) {
			continue
		}
		if sc := score(q.Text, queryTerms, r.Title, r.Content); sc > 0 {
			hits = append(hits, index.Hit{Record: r, Score: sc})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b index.Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if q.Top > 0 && len(hits) > q.Top {
		hits = hits[:q.Top]
	}
	return hits, nil
}

// Delete removes records by id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]index.Record, 0, len(s.records))
	byID := make(map[string]int, len(s.records))
	for _, r := range s.records {
		if drop[r.ID] {
			continue
		}
		byID[r.ID] = len(records)
		records = append(records, r)
	}
	if len(records) == len(s.records) {
		return nil
	}
	if err := s.persist(records); err != nil {
		return err
	}
	s.records, s.byID = records, byID
	return nil
}

// Records returns a copy of every record, in insertion order.
func (s *Store) Records() []index.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

func (s *Store) Close() error {
	return nil
}

// persist writes records to a temp file beside the index and renames it
// into place.
func (s *Store) persist(records []index.Record) error {
	if s.path == "" {
		return nil
	}
	if records == nil {
		records = []index.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func failedAll(chunks []*core.Chunk) index.WriteResult {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return index.WriteResult{FailedIDs: ids}
}
