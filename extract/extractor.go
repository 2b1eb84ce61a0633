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

package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/core"
)

// DefaultMinTextLength is the amount of native text below which a document
// is treated as scanned and sent through OCR.
const DefaultMinTextLength = 100

// Kind identifies the input format.
type Kind int

const (
	KindPDF Kind = iota
	KindText
)

// KindFromFilename picks the extraction path from a file name. Slide decks
// are expected as PDF exports; anything that is not plain text is read as PDF.
func KindFromFilename(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".text":
		return KindText
	default:
		return KindPDF
	}
}

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	PageCount(ctx context.Context, data []byte) (int, error)
}

// PageSource produces native per-page text. It returns exactly count pages;
// pages it cannot read are returned with empty text.
type PageSource interface {
	Pages(ctx context.Context, data []byte, count int) ([]core.Page, error)
}

// OCR recognizes text on rasterized pages.
type OCR interface {
	Run(ctx context.Context, data []byte) ([]core.Page, error)
}

// RawImage is an image as embedded in the document.
type RawImage struct {
	Page     int
	Index    int
	Data     []byte
	MimeType string
}

// ImageSource pulls embedded images out of a document.
type ImageSource interface {
	Images(ctx context.Context, data []byte) ([]RawImage, error)
}

// Extraction is the result of reading one document.
type Extraction struct {
	Pages     []core.Page
	PageCount int
	Method    core.ExtractionMethod
	Images    []core.Image
}

// Text returns all page text joined by newlines.
func (e *Extraction) Text() string {
	parts := make([]string, len(e.Pages))
	for i, p := range e.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// Extractor turns document bytes into pages of text.
type Extractor struct {
	counter       PageCounter
	pages         PageSource
	ocr           OCR
	images        ImageSource
	analyzer      ai.ImageAnalyzer
	minTextLength int
	logger        *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithOCR sets the engine used for scanned documents. Without one, documents
// below the text threshold fail with core.ErrOCRExhausted.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) error {
		e.ocr = ocr
		return nil
	}
}

// WithMinTextLength sets the native-text threshold in characters.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) error {
		if n < 0 {
			return fmt.Errorf("min text length must not be negative, got %d", n)
		}
		e.minTextLength = n
		return nil
	}
}

// WithPageSource replaces the native text source.
func WithPageSource(src PageSource) Option {
	return func(e *Extractor) error {
		if src == nil {
			return errors.New("page source must not be nil")
		}
		e.pages = src
		return nil
	}
}

// WithPageCounter replaces the page counter.
func WithPageCounter(counter PageCounter) Option {
	return func(e *Extractor) error {
		if counter == nil {
			return errors.New("page counter must not be nil")
		}
		e.counter = counter
		return nil
	}
}

// WithImages enables image extraction. analyzer may be nil, in which case
// images are recorded without a description.
func WithImages(src ImageSource, analyzer ai.ImageAnalyzer) Option {
	return func(e *Extractor) error {
		e.images = src
		e.analyzer = analyzer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an Extractor reading PDFs with pdfcpu and ledongthuc/pdf.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		counter:       PDFCPU{},
		pages:         NativePages{},
		minTextLength: DefaultMinTextLength,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "extractor")
	return e, nil
}

// Extract reads a document. OCR runs only when the native text of the whole
// document is shorter than the configured threshold.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (*Extraction, error) {
	if kind == KindText {
		return e.extractText(data)
	}

	count, err := e.counter.PageCount(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: document has no pages", core.ErrExtraction)
	}

	pages, err := e.pages.Pages(ctx, data, count)
	if err != nil {
		// unreadable text layer; a scanned document looks the same
		e.logger.Warn("native text extraction failed", "err", err)
		pages = blankPages(count)
	}

	result := &Extraction{Pages: pages, PageCount: count, Method: core.MethodNative}
	if n := textLength(pages); n < e.minTextLength {
		e.logger.Info("native text below threshold, running OCR", "chars", n, "threshold", e.minTextLength, "pages", count)
		ocrPages, err := e.runOCR(ctx, data)
		switch {
		case err == nil:
			result.Pages = ocrPages
			result.Method = core.MethodOCR
		case n > 0 && errors.Is(err, core.ErrOCRExhausted):
			e.logger.Warn("OCR found nothing, keeping native text", "chars", n, "err", err)
		default:
			return nil, err
		}
	}

	if e.images != nil {
		result.Images = e.extractImages(ctx, data)
	}
	return result, nil
}

func (e *Extractor) runOCR(ctx context.Context, data []byte) ([]core.Page, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("%w: no OCR engine configured", core.ErrOCRExhausted)
	}
	return e.ocr.Run(ctx, data)
}

func (e *Extractor) extractText(data []byte) (*Extraction, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", core.ErrExtraction)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document is empty", core.ErrExtraction)
	}
	return &Extraction{
		Pages:     []core.Page{{Number: 1, Text: text, Source: core.MethodNative}},
		PageCount: 1,
		Method:    core.MethodNative,
	}, nil
}

func blankPages(count int) []core.Page {
	pages := make([]core.Page, count)
	for i := range pages {
		pages[i] = core.Page{Number: i + 1, Source: core.MethodNative}
	}
	return pages
}

// textLength counts the characters of trimmed page text, ignoring placeholders.
func textLength(pages []core.Page) int {
	n := 0
	for _, p := range pages {
		if p.Placeholder {
			continue
		}
		n += utf8.RuneCountInString(strings.TrimSpace(p.Text))
	}
	return n
}
