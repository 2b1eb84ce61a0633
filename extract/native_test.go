package extract

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyph(s string, x, y, w float64) pdf.Text {
	return pdf.Text{Font: "F1", FontSize: 12, X: x, Y: y, W: w, S: s}
}

func TestLayoutRows(t *testing.T) {
	// deliberately out of reading order
	texts := []pdf.Text{
		glyph("N", 10, 680, 8),
		glyph("e", 18, 680, 6),
		glyph("H", 10, 700, 6),
		glyph("x", 24, 680, 6),
		glyph("i", 16, 700, 4),
		glyph(" ", 20, 700, 3),
		glyph("t", 30, 680, 4),
		glyph("y", 23, 700, 6),
		glyph("o", 29, 700, 6),
	}

	text, spans := layoutRows(3, texts, 792)

	assert.Equal(t, "Hi yo\nNext", text)
	require.Len(t, spans, 3)

	assert.Equal(t, core.Span{Text: "Hi", Page: 3, Line: 1, BBox: core.BBox{X: 10, Y: 80, W: 10, H: 12}}, spans[0])
	assert.Equal(t, core.Span{Text: "yo", Page: 3, Line: 1, BBox: core.BBox{X: 23, Y: 80, W: 12, H: 12}}, spans[1])
	assert.Equal(t, core.Span{Text: "Next", Page: 3, Line: 2, BBox: core.BBox{X: 10, Y: 100, W: 24, H: 12}}, spans[2])
}

func TestLayoutRowsSplitsWideGaps(t *testing.T) {
	texts := []pdf.Text{
		glyph("A", 10, 500, 5),
		glyph("B", 40, 500, 5),
	}
	text, spans := layoutRows(1, texts, 0)

	assert.Equal(t, "A B", text)
	require.Len(t, spans, 2)
	// unknown page height keeps PDF coordinates
	assert.Equal(t, 500.0, spans[0].BBox.Y)
	assert.Equal(t, 1, spans[1].Line)
}

func TestLayoutRowsBaselineTolerance(t *testing.T) {
	texts := []pdf.Text{
		glyph("a", 10, 700, 6),
		glyph("b", 16, 701.5, 6),
		glyph("c", 10, 690, 6),
	}
	text, spans := layoutRows(1, texts, 792)

	assert.Equal(t, "ab\nc", text)
	require.Len(t, spans, 2)
	assert.Equal(t, "ab", spans[0].Text)
	assert.Equal(t, 2, spans[1].Line)
}

func TestLayoutRowsEmpty(t *testing.T) {
	text, spans := layoutRows(1, []pdf.Text{glyph("", 0, 0, 0), glyph(" ", 5, 5, 2)}, 792)
	assert.Empty(t, text)
	assert.Empty(t, spans)
}
