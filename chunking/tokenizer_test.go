package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTexts(text string, tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = text[tok.Start:tok.End]
	}
	return out
}

func TestWordTokenizer(t *testing.T) {
	text := "  hello   wörld\nnext\tline "
	tokens := WordTokenizer{}.Tokenize(text)
	assert.Equal(t, []string{"hello", "wörld", "next", "line"}, tokenTexts(text, tokens))
	assert.Empty(t, WordTokenizer{}.Tokenize(" \n\t"))
}

func TestLineTokenizer(t *testing.T) {
	text := "first line\n\n  second  \nthird"
	tokens := LineTokenizer{}.Tokenize(text)
	assert.Equal(t, []string{"first line", "second", "third"}, tokenTexts(text, tokens))
}

func TestRuneBoundaries(t *testing.T) {
	s := "aé日b" // a(1) é(2) 日(3) b(1)
	assert.Equal(t, 1, runeStart(s, 2))
	assert.Equal(t, 3, runeStart(s, 5))
	assert.Equal(t, 3, runeEnd(s, 2))
	assert.Equal(t, 6, runeEnd(s, 4))
	assert.Equal(t, len(s), runeEnd(s, len(s)))
	assert.Equal(t, 0, runeStart(s, 0))
}

func TestTiktokenTokenizer(t *testing.T) {
	tok, err := NewTiktokenTokenizer(DefaultEncoding)
	if err != nil {
		t.Skipf("cl100k_base unavailable: %v", err)
	}

	text := "Location-aware chunking für Präsentationen 日本語\nsecond line"
	tokens := tok.Tokenize(text)
	require.NotEmpty(t, tokens)

	var rebuilt strings.Builder
	prev := 0
	for _, tk := range tokens {
		assert.GreaterOrEqual(t, tk.Start, prev)
		assert.Greater(t, tk.End, tk.Start)
		assert.True(t, utf8.ValidString(text[tk.Start:tk.End]))
		rebuilt.WriteString(text[prev:tk.End])
		prev = tk.End
	}
	assert.Equal(t, text, rebuilt.String())
}
