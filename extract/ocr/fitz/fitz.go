// Package fitz renders PDF pages with MuPDF through go-fitz.
package fitz

import (
	"fmt"

	gofitz "github.com/gen2brain/go-fitz"
	"github.com/poiesic/docscope/extract/ocr"
)

// Rasterizer implements ocr.Rasterizer.
type Rasterizer struct{}

var _ ocr.Rasterizer = Rasterizer{}

// Open loads a PDF from memory.
func (Rasterizer) Open(data []byte) (ocr.PageImages, error) {
	doc, err := gofitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("fitz: %w", err)
	}
	return &document{doc: doc}, nil
}

// document serializes rendering internally, so Render is safe to call
// from several workers.
type document struct {
	doc *gofitz.Document
}

func (d *document) NumPages() int {
	return d.doc.NumPage()
}

// Render returns the page as PNG.
func (d *document) Render(page, dpi int) ([]byte, error) {
	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("fitz: page %d out of range", page)
	}
	return d.doc.ImagePNG(page-1, float64(dpi))
}

func (d *document) Close() error {
	return d.doc.Close()
}
