package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docscope/core"
)

// NativePages reads the text layer with ledongthuc/pdf, keeping glyph
// positions so every line gets a bounding box.
type NativePages struct{}

var _ PageSource = NativePages{}

// Pages returns count pages. A page whose content stream cannot be decoded
// comes back empty.
func (NativePages) Pages(ctx context.Context, data []byte, count int) ([]core.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := blankPages(count)
	n := min(r.NumPage(), count)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts, err := pageTexts(page)
		if err != nil {
			continue
		}
		text, spans := layoutRows(i, texts, pageHeight(page))
		pages[i-1].Text = text
		pages[i-1].Spans = spans
	}
	return pages, nil
}

// pageTexts decodes a page's content stream. The decoder panics on some
// malformed streams, so the panic is turned into an error.
func pageTexts(page pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page content: %v", r)
		}
	}()
	return page.Content().Text, nil
}

// pageHeight finds the MediaBox height, following inherited attributes.
func pageHeight(page pdf.Page) float64 {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return box.Index(3).Float64() - box.Index(1).Float64()
		}
	}
	return 0
}

// layoutRows groups positioned glyphs into rows, top to bottom, and rows
// into space-separated runs. Each run becomes a span whose Line is the
// page-local row number. Boxes use a top-left origin when the page height
// is known.
func layoutRows(pageNum int, texts []pdf.Text, height float64) (string, []core.Span) {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return "", nil
	}

	// PDF y grows upwards
	slices.SortStableFunc(glyphs, func(a, b pdf.Text) int {
		switch {
		case a.Y > b.Y:
			return -1
		case a.Y < b.Y:
			return 1
		}
		return 0
	})

	var rows [][]pdf.Text
	for _, g := range glyphs {
		if n := len(rows); n > 0 && sameRow(rows[n-1][0], g) {
			rows[n-1] = append(rows[n-1], g)
			continue
		}
		rows = append(rows, []pdf.Text{g})
	}

	var (
		lines []string
		spans []core.Span
	)
	row := 0
	for _, rowGlyphs := range rows {
		slices.SortStableFunc(rowGlyphs, func(a, b pdf.Text) int {
			return cmpFloat(a.X, b.X)
		})
		rowSpans := rowRuns(rowGlyphs)
		var text strings.Builder
		kept := rowSpans[:0]
		for _, s := range rowSpans {
			s.Text = strings.TrimSpace(s.Text)
			if s.Text == "" {
				continue
			}
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(s.Text)
			kept = append(kept, s)
		}
		if text.Len() == 0 {
			continue
		}
		row++
		for _, s := range kept {
			s.Page = pageNum
			s.Line = row
			if height > 0 {
				s.BBox.Y = height - s.BBox.Y - s.BBox.H
			}
			spans = append(spans, s)
		}
		lines = append(lines, text.String())
	}
	return strings.Join(lines, "\n"), spans
}

// sameRow reports whether two glyphs share a baseline within half the font size.
func sameRow(a, b pdf.Text) bool {
	tolerance := math.Max(1, 0.5*math.Max(a.FontSize, b.FontSize))
	return math.Abs(a.Y-b.Y) <= tolerance
}

// rowRuns splits a row at spaces and at horizontal gaps wider than a
// fraction of the font size. Boxes are in PDF coordinates (bottom-left).
func rowRuns(glyphs []pdf.Text) []core.Span {
	var (
		spans []core.Span
		cur   strings.Builder
		box   core.BBox
		prev  *pdf.Text
	)
	flush := func() {
		if cur.Len() > 0 {
			spans = append(spans, core.Span{Text: cur.String(), BBox: box})
		}
		cur.Reset()
		box = core.BBox{}
	}
	for i := range glyphs {
		g := &glyphs[i]
		if strings.TrimSpace(g.S) == "" {
			flush()
			prev = g
			continue
		}
		if prev != nil && g.X-(prev.X+prev.W) > 0.25*math.Max(g.FontSize, 1) {
			flush()
		}
		cur.WriteString(g.S)
		glyphBox := core.BBox{X: g.X, Y: g.Y, W: math.Max(g.W, 0.01), H: math.Max(g.FontSize, 0.01)}
		box = box.Union(glyphBox)
		prev = g
	}
	flush()
	return spans
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
