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

package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docscope/core"
)

// Outcome says which backend served a call.
type Outcome struct {
	// Backend is the name of the store whose result was returned.
	Backend string
	// Degraded is true when the primary failed and the secondary served
	// some or all of the call.
	Degraded bool
	// PrimaryErr is the primary's failure, if any.
	PrimaryErr error
	// KeywordOnly is true when the store that answered a query cannot rank
	// by vector.
	KeywordOnly bool
}

// Tiered routes calls to a primary store and falls back to a secondary.
// Either store may be nil; with only one configured there is no fallback.
type Tiered struct {
	primary   Store
	secondary Store
	strict    bool
	mirror    bool
	logger    *slog.Logger
}

// TieredOption configures a Tiered store.
type TieredOption func(*Tiered)

// WithStrict disables fallback. Primary failures are returned wrapped in
// core.ErrBackendUnavailable.
func WithStrict(strict bool) TieredOption {
	return func(t *Tiered) {
		t.strict = strict
	}
}

// WithMirror also writes every chunk to the secondary, so fallback queries
// see documents indexed while the primary was healthy.
func WithMirror(mirror bool) TieredOption {
	return func(t *Tiered) {
		t.mirror = mirror
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) TieredOption {
	return func(t *Tiered) {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
	}
}

// NewTiered combines primary and secondary. At least one is required.
func NewTiered(primary, secondary Store, opts ...TieredOption) (*Tiered, error) {
	if primary == nil && secondary == nil {
		return nil, ErrStoreRequired
	}
	t := &Tiered{
		primary:   primary,
		secondary: secondary,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "index")
	if t.primary == nil {
		t.primary, t.secondary = t.secondary, nil
	}
	return t, nil
}

// Primary returns the preferred store.
func (t *Tiered) Primary() Store {
	return t.primary
}

// Secondary returns the fallback store, or nil.
func (t *Tiered) Secondary() Store {
	return t.secondary
}

func (t *Tiered) canFallback() bool {
	return t.secondary != nil && !t.strict
}

// Upsert writes chunks to the primary. Chunks the primary could not take go
// to the secondary. The result combines both writes.
func (t *Tiered) Upsert(ctx context.Context, chunks []*core.Chunk) (WriteResult, Outcome, error) {
	res, err := t.primary.Upsert(ctx, chunks)
	out := Outcome{Backend: t.primary.Name()}
	if err == nil {
		if t.mirror && t.secondary != nil {
			t.mirrorWrite(ctx, chunks)
		}
		return res, out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, out, ctxErr
	}
	out.PrimaryErr = err
	if !t.canFallback() {
		if t.strict {
			err = fmt.Errorf("%w: %s: %w", core.ErrBackendUnavailable, t.primary.Name(), err)
		}
		return res, out, err
	}

	retry := chunks
	if res.Written > 0 {
		retry = pick(chunks, res.FailedIDs)
		if t.mirror {
			t.mirrorWrite(ctx, omit(chunks, res.FailedIDs))
		}
	}
	t.logger.Warn("primary index write failed, using fallback",
		"backend", t.primary.Name(), "fallback", t.secondary.Name(),
		"written", res.Written, "failed", res.Failed(), "err", err)

	out.Degraded = true
	if res.Written == 0 {
		out.Backend = t.secondary.Name()
	}
	fbRes, fbErr := t.secondary.Upsert(ctx, retry)
	combined := WriteResult{
		Written:   res.Written + fbRes.Written,
		FailedIDs: fbRes.FailedIDs,
	}
	if fbErr != nil {
		return combined, out, errors.Join(err, fbErr)
	}
	return combined, out, nil
}

func (t *Tiered) mirrorWrite(ctx context.Context, chunks []*core.Chunk) {
	if len(chunks) == 0 {
		return
	}
	if _, err := t.secondary.Upsert(ctx, chunks); err != nil {
		t.logger.Warn("mirror write failed", "backend", t.secondary.Name(), "err", err)
	}
}

// Query searches the primary and falls back to the secondary on error.
func (t *Tiered) Query(ctx context.Context, q Query) ([]Hit, Outcome, error) {
	hits, err := t.primary.Query(ctx, q)
	out := Outcome{Backend: t.primary.Name(), KeywordOnly: !t.primary.Capabilities().Vector}
	if err == nil {
		return hits, out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, out, ctxErr
	}
	out.PrimaryErr = err
	if !t.canFallback() {
		return nil, out, fmt.Errorf("%w: %s: %w", core.ErrBackendUnavailable, t.primary.Name(), err)
	}

	t.logger.Warn("primary index query failed, using fallback",
		"backend", t.primary.Name(), "fallback", t.secondary.Name(), "err", err)
	out.Backend = t.secondary.Name()
	out.Degraded = true
	out.KeywordOnly = !t.secondary.Capabilities().Vector
	hits, fbErr := t.secondary.Query(ctx, q)
	if fbErr != nil {
		return nil, out, fmt.Errorf("%w: %w", core.ErrBackendUnavailable, errors.Join(err, fbErr))
	}
	return hits, out, nil
}

// Delete removes ids from every configured store.
func (t *Tiered) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := t.primary.Delete(ctx, ids)
	if t.secondary != nil {
		if sErr := t.secondary.Delete(ctx, ids); sErr != nil {
			t.logger.Warn("fallback delete failed", "backend", t.secondary.Name(), "err", sErr)
		}
	}
	return err
}

// Close closes both stores.
func (t *Tiered) Close() error {
	var errs []error
	if t.primary != nil {
		errs = append(errs, t.primary.Close())
	}
	if t.secondary != nil {
		errs = append(errs, t.secondary.Close())
	}
	return errors.Join(errs...)
}

// omit returns the chunks whose ids are not listed, in chunk order.
func omit(chunks []*core.Chunk, ids []string) []*core.Chunk {
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	var out []*core.Chunk
	for _, c := range chunks {
		if !skip[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// pick returns the chunks whose ids are listed, in chunk order.
func pick(chunks []*core.Chunk, ids []string) []*core.Chunk {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*core.Chunk
	for _, c := range chunks {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
