package chunking

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Token is a half-open byte range [Start, End) of the tokenized text.
type Token struct {
	Start int
	End   int
}

// Tokenizer splits text into ordered, non-overlapping tokens.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// WordTokenizer treats every run of non-space characters as one token.
// It needs no model files, so it is the default.
type WordTokenizer struct{}

func (WordTokenizer) Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Start: start, End: len(text)})
	}
	return tokens
}

// LineTokenizer counts one token per non-blank line, for budgets expressed
// in lines rather than model tokens.
type LineTokenizer struct{}

func (LineTokenizer) Tokenize(text string) []Token {
	var tokens []Token
	pos := 0
	for line := range strings.SplitSeq(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lead := strings.Index(line, trimmed)
			tokens = append(tokens, Token{Start: pos + lead, End: pos + lead + len(trimmed)})
		}
		pos += len(line) + 1
	}
	return tokens
}

// TiktokenTokenizer counts model tokens with a BPE encoding such as
// cl100k_base.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// DefaultEncoding is the encoding used by OpenAI's ada-002 and 3-series embedders.
const DefaultEncoding = "cl100k_base"

// NewTiktokenTokenizer loads the named encoding. tiktoken-go caches the
// BPE ranks under TIKTOKEN_CACHE_DIR when set.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Tokenize encodes text and recovers byte offsets by decoding tokens one at
// a time. Boundaries that fall inside a multi-byte character are widened to
// the character, so every token slices to valid UTF-8.
func (t *TiktokenTokenizer) Tokenize(text string) []Token {
	ids := t.enc.Encode(text, nil, nil)
	tokens := make([]Token, 0, len(ids))
	pos := 0
	for _, id := range ids {
		n := len(t.enc.Decode([]int{id}))
		start := pos
		pos = min(pos+n, len(text))
		tok := Token{Start: runeStart(text, start), End: runeEnd(text, pos)}
		if k := len(tokens); k > 0 && tok.Start < tokens[k-1].End {
			// share of a character already covered by the previous token
			tok.Start = tokens[k-1].End
		}
		if tok.End <= tok.Start {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// runeStart moves i back to the first byte of the character containing it.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeEnd moves i forward past the character containing byte i-1.
func runeEnd(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
