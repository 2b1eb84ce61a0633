package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/locate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSource = Source{DocumentID: "doc1", OwnerID: "u1", Filename: "deck.pdf", Generation: 1}

func numberedPages(lines, perPage int) []core.Page {
	var pages []core.Page
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d of the deck\n", i)
		if i%perPage == 0 || i == lines {
			pages = append(pages, core.Page{Number: len(pages) + 1, Text: b.String()})
			b.Reset()
		}
	}
	return pages
}

func TestChunk120Lines(t *testing.T) {
	c, err := New(WithTokenizer(LineTokenizer{}), WithBudget(50), WithOverlap(0.10))
	require.NoError(t, err)
	assert.Equal(t, 45, c.Step())

	lines := locate.Map(numberedPages(120, 20))
	chunks := c.Chunk(testSource, lines)
	require.Len(t, chunks, 3)

	want := [][2]int{{1, 50}, {46, 95}, {91, 120}}
	for i, chunk := range chunks {
		assert.Equal(t, want[i][0], chunk.LineStart, "chunk %d start", i+1)
		assert.Equal(t, want[i][1], chunk.LineEnd, "chunk %d end", i+1)
		assert.Equal(t, i+1, chunk.ChunkIndex)
		assert.Equal(t, 3, chunk.TotalChunks)
	}
	assert.Equal(t, 50, chunks[0].TokenCount)
	assert.Equal(t, 30, chunks[2].TokenCount)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 3, chunks[0].PageEnd)
	assert.Equal(t, 6, chunks[2].PageEnd)
	assert.Equal(t, "deck.pdf - Part 2/3", chunks[1].Title)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "line 46 of the deck"))
	assert.True(t, strings.HasSuffix(chunks[2].Content, "line 120 of the deck"))
}

func TestChunkInvariants(t *testing.T) {
	c, err := New(WithBudget(37), WithOverlap(0.2))
	require.NoError(t, err)

	pages := numberedPages(200, 33)
	pages = append(pages, core.Page{Number: 8, Text: "Größe naïve café 日本語 text\n\n  tail  "})
	lines := locate.Map(pages)
	stream := []rune(locate.Stream(lines))

	chunks := c.Chunk(testSource, lines)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.NoError(t, core.ValidateChunk(chunk, c.Budget()))
		assert.LessOrEqual(t, chunk.LineStart, chunk.LineEnd)
		assert.GreaterOrEqual(t, chunk.CharEnd, chunk.CharStart)
		assert.LessOrEqual(t, chunk.TokenCount, 37)
		assert.Equal(t, chunk.Content, string(stream[chunk.CharStart:chunk.CharEnd]))
		assert.Equal(t, core.PrecisionApproximate, chunk.Precision)
		assert.Equal(t, "u1", chunk.OwnerID)
		assert.NotEmpty(t, chunk.ID)
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(lines), last.LineEnd)
}

func TestChunkDeterministic(t *testing.T) {
	c, err := New(WithBudget(25))
	require.NoError(t, err)
	lines := locate.Map(numberedPages(60, 10))

	assert.Equal(t, c.Chunk(testSource, lines), c.Chunk(testSource, lines))
}

func TestChunkOverlap(t *testing.T) {
	c, err := New(WithBudget(20), WithOverlap(0.25))
	require.NoError(t, err)
	lines := locate.Map(numberedPages(50, 50))
	chunks := c.Chunk(testSource, lines)
	require.Greater(t, len(chunks), 2)

	shared := c.Budget() - c.Step()
	for i := 0; i+1 < len(chunks); i++ {
		cur := strings.Fields(chunks[i].Content)
		next := strings.Fields(chunks[i+1].Content)
		require.Len(t, cur, c.Budget())
		assert.Equal(t, cur[len(cur)-shared:], next[:shared])
	}
}

func TestChunkEmpty(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(testSource, nil))
	assert.Empty(t, c.Chunk(testSource, locate.Map([]core.Page{{Number: 1, Text: " \n\t\n"}})))
}

func TestChunkSingleWindow(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	lines := locate.Map([]core.Page{{Number: 1, Text: "just one short line"}})

	chunks := c.Chunk(testSource, lines)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just one short line", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, 1, chunks[0].LineEnd)
	assert.Equal(t, 4, chunks[0].TokenCount)
	assert.Equal(t, 1, chunks[0].TotalChunks)
}

func TestChunkBoxesAndPrecision(t *testing.T) {
	lines := []core.Line{
		{Number: 1, Page: 1, Text: "alpha beta", BBox: core.BBox{X: 10, Y: 10, W: 50, H: 10}, CharStart: 0, CharEnd: 10},
		{Number: 2, Page: 1, Text: "gamma", BBox: core.BBox{X: 10, Y: 30, W: 30, H: 10}, CharStart: 11, CharEnd: 16},
		{Number: 3, Page: 2, Text: "delta", CharStart: 17, CharEnd: 22, Precision: core.PrecisionApproximate},
	}
	c, err := New(WithBudget(3), WithOverlap(0))
	require.NoError(t, err)

	chunks := c.Chunk(testSource, lines)
	require.Len(t, chunks, 2)

	assert.Equal(t, core.BBox{X: 10, Y: 10, W: 50, H: 30}, chunks[0].BBox)
	assert.Equal(t, core.PrecisionExact, chunks[0].Precision)
	assert.Equal(t, "alpha beta\ngamma", chunks[0].Content)

	assert.Equal(t, "delta", chunks[1].Content)
	assert.True(t, chunks[1].BBox.IsZero())
	assert.Equal(t, core.PrecisionApproximate, chunks[1].Precision)
	assert.Equal(t, 2, chunks[1].PageStart)
	assert.Equal(t, 17, chunks[1].CharStart)
}

func TestStepFloor(t *testing.T) {
	tests := []struct {
		budget  int
		overlap float64
		want    int
	}{
		{750, 0.10, 675},
		{50, 0.10, 45},
		{10, 0, 10},
		{1, 0.5, 1},
		{3, 0.99, 1},
	}
	for _, tt := range tests {
		c, err := New(WithBudget(tt.budget), WithOverlap(tt.overlap))
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Step(), "budget %d overlap %g", tt.budget, tt.overlap)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(WithBudget(0))
	assert.Error(t, err)
	_, err = New(WithOverlap(1))
	assert.Error(t, err)
	_, err = New(WithOverlap(-0.1))
	assert.Error(t, err)
	_, err = New(WithTokenizer(nil))
	assert.Error(t, err)
}
