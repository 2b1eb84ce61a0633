// Package tesseract recognizes page images with Tesseract through gosseract.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"github.com/poiesic/docscope/extract/ocr"
)

// Recognizer implements ocr.Recognizer. Each call uses its own client, so a
// Recognizer may be shared between workers.
type Recognizer struct {
	languages []string
	boxes     bool
}

var _ ocr.Recognizer = (*Recognizer)(nil)

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLanguages selects the Tesseract language models, e.g. "eng", "deu".
func WithLanguages(langs ...string) Option {
	return func(r *Recognizer) {
		r.languages = langs
	}
}

// WithLineBoxes asks Tesseract for per-line bounding boxes.
func WithLineBoxes(enabled bool) Option {
	return func(r *Recognizer) {
		r.boxes = enabled
	}
}

// New creates a Recognizer. Line boxes are on by default.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{boxes: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize treats the image as a single uniform block of text.
func (r *Recognizer) Recognize(ctx context.Context, img []byte) (ocr.Recognition, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(r.languages) > 0 {
		if err := client.SetLanguage(r.languages...); err != nil {
			return ocr.Recognition{}, fmt.Errorf("tesseract: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: %w", err)
	}
	rec := ocr.Recognition{Text: text}
	if !r.boxes || ctx.Err() != nil {
		return rec, nil
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		// text without layout is still useful
		return rec, nil
	}
	for _, b := range boxes {
		rec.Lines = append(rec.Lines, ocr.RecognizedLine{Text: b.Word, Box: b.Box})
	}
	return rec, nil
}
