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

package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docscope/core"
)

// Placeholder texts for pages that could not be recognized.
const (
	TimeoutPlaceholder = "[Timeout Error]"
	ErrorPlaceholder   = "[OCR Error]"
)

// Defaults match the settings scanned slide decks were tuned for.
const (
	DefaultDPI         = 150
	DefaultBatchSize   = 10
	DefaultPageTimeout = 180 * time.Second
)

// PageImages is an opened document that can render pages.
// Render must be safe for concurrent use.
type PageImages interface {
	NumPages() int
	// Render returns an encoded image of the 1-based page.
	Render(page, dpi int) ([]byte, error)
	Close() error
}

// Rasterizer opens documents for rendering.
type Rasterizer interface {
	Open(data []byte) (PageImages, error)
}

// RecognizedLine is one line of recognized text. Box is in image pixels;
// an empty Box means the recognizer reported no position.
type RecognizedLine struct {
	Text string
	Box  image.Rectangle
}

// Recognition is the recognizer output for one image.
type Recognition struct {
	Text  string
	Lines []RecognizedLine
}

// Recognizer turns a page image into text. Implementations need not honor
// ctx; the engine enforces the page timeout itself.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (Recognition, error)
}

// Engine runs OCR over every page of a document in sequential batches, with
// the pages of a batch recognized concurrently.
type Engine struct {
	rasterizer  Rasterizer
	recognizer  Recognizer
	pool        *ants.Pool
	dpi         int
	batchSize   int
	pageTimeout time.Duration
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithDPI sets the render resolution.
func WithDPI(dpi int) Option {
	return func(e *Engine) error {
		if dpi <= 0 {
			return fmt.Errorf("dpi must be positive, got %d", dpi)
		}
		e.dpi = dpi
		return nil
	}
}

// WithBatchSize sets how many pages are recognized at once.
// The worker pool is sized to match.
func WithBatchSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		e.batchSize = n
		return nil
	}
}

// WithPageTimeout bounds the time spent on a single page.
func WithPageTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("page timeout must be positive, got %s", d)
		}
		e.pageTimeout = d
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

// NewEngine creates an OCR engine. Call Release when done.
func NewEngine(rasterizer Rasterizer, recognizer Recognizer, opts ...Option) (*Engine, error) {
	if rasterizer == nil {
		return nil, ErrRasterizerRequired
	}
	if recognizer == nil {
		return nil, ErrRecognizerRequired
	}

	e := &Engine{
		rasterizer:  rasterizer,
		recognizer:  recognizer,
		dpi:         DefaultDPI,
		batchSize:   DefaultBatchSize,
		pageTimeout: DefaultPageTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "ocr")

	pool, err := ants.NewPool(e.batchSize)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Release stops the worker pool.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// pageResult is what one worker reports for one page.
type pageResult struct {
	page core.Page
	err  error
}

// Run recognizes every page. Pages come back in document order whatever
// order the workers finish in. A page that times out or fails becomes a
// placeholder; if no page yields real text the error wraps
// core.ErrOCRExhausted.
func (e *Engine) Run(ctx context.Context, data []byte) ([]core.Page, error) {
	doc, err := e.rasterizer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open for rendering: %w", core.ErrOCRExhausted, err)
	}
	defer doc.Close()
	// recognitions that outlive their page timeout still hold doc
	var inflight sync.WaitGroup
	defer inflight.Wait()

	count := doc.NumPages()
	if count == 0 {
		return nil, fmt.Errorf("%w: document has no pages", core.ErrExtraction)
	}

	results := make(map[int]pageResult, count)
	var mu sync.Mutex
	for start := 1; start <= count; start += e.batchSize {
		end := min(start+e.batchSize-1, count)
		e.logger.Debug("recognizing batch", "first", start, "last", end, "pages", count)

		var wg sync.WaitGroup
		for page := start; page <= end; page++ {
			wg.Add(1)
			err := e.pool.Submit(func() {
				defer wg.Done()
				res := e.recognizePage(ctx, doc, page, &inflight)
				mu.Lock()
				results[page] = res
				mu.Unlock()
			})
			if err != nil {
				wg.Done()
				mu.Lock()
				results[page] = pageResult{page: placeholder(page, ErrorPlaceholder), err: err}
				mu.Unlock()
			}
		}
		wg.Wait()
		// a batch is over only when every recognition in it has returned
		inflight.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	pages := make([]core.Page, count)
	var errs []error
	usable := 0
	for i := range pages {
		res := results[i+1]
		pages[i] = res.page
		if res.err != nil {
			errs = append(errs, res.err)
		}
		if !res.page.Placeholder && strings.TrimSpace(res.page.Text) != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrOCRExhausted, errors.Join(errs...))
	}
	if len(errs) > 0 {
		e.logger.Warn("some pages could not be recognized", "failed", len(errs), "pages", count)
	}
	return pages, nil
}

// recognizePage gives up on a page after the page timeout. The render and
// recognition keep running in the background until they return; inflight
// tracks them so the caller can wait before reusing the workers or closing
// doc.
func (e *Engine) recognizePage(ctx context.Context, doc PageImages, page int, inflight *sync.WaitGroup) pageResult {
	pageCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	type outcome struct {
		rec Recognition
		err error
	}
	done := make(chan outcome, 1)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		if err := pageCtx.Err(); err != nil {
			done <- outcome{err: err}
			return
		}
		img, err := doc.Render(page, e.dpi)
		if err != nil {
			done <- outcome{err: fmt.Errorf("render page %d: %w", page, err)}
			return
		}
		if err := pageCtx.Err(); err != nil {
			done <- outcome{err: err}
			return
		}
		rec, err := e.recognizer.Recognize(pageCtx, img)
		if err != nil {
			err = fmt.Errorf("recognize page %d: %w", page, err)
		}
		done <- outcome{rec: rec, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			e.logger.Warn("page recognition failed", "page", page, "err", out.err)
			return pageResult{page: placeholder(page, ErrorPlaceholder), err: out.err}
		}
		return pageResult{page: e.toPage(page, out.rec)}
	case <-pageCtx.Done():
		err := fmt.Errorf("page %d: %w", page, pageCtx.Err())
		e.logger.Warn("page recognition timed out", "page", page, "timeout", e.pageTimeout, "err", err)
		return pageResult{page: placeholder(page, TimeoutPlaceholder), err: err}
	}
}

// toPage converts a recognition into a page, scaling line boxes from pixels
// at the render DPI to PDF points.
func (e *Engine) toPage(number int, rec Recognition) core.Page {
	page := core.Page{Number: number, Source: core.MethodOCR}
	scale := 72.0 / float64(e.dpi)

	var lines []string
	for _, l := range rec.Lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
		span := core.Span{Text: text, Page: number, Line: len(lines)}
		if !l.Box.Empty() {
			span.BBox = core.BBox{
				X: float64(l.Box.Min.X) * scale,
				Y: float64(l.Box.Min.Y) * scale,
				W: float64(l.Box.Dx()) * scale,
				H: float64(l.Box.Dy()) * scale,
			}
		}
		page.Spans = append(page.Spans, span)
	}

	switch {
	case len(lines) > 0:
		page.Text = strings.Join(lines, "\n")
	default:
		page.Text = strings.TrimSpace(rec.Text)
	}
	return page
}

func placeholder(number int, text string) core.Page {
	return core.Page{Number: number, Text: text, Source: core.MethodOCR, Placeholder: true}
}
