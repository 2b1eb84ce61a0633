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

package chunking

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/locate"
)

// Defaults size chunks at roughly 3000 characters of English text.
const (
	DefaultBudget  = 750
	DefaultOverlap = 0.10
)

// Source identifies the document the chunks belong to.
type Source struct {
	DocumentID core.DocumentID
	OwnerID    string
	Filename   string
	Generation int
}

// Chunker cuts a line table into overlapping token windows.
type Chunker struct {
	tokenizer Tokenizer
	budget    int
	overlap   float64
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithTokenizer sets how tokens are counted.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) error {
		if t == nil {
			return fmt.Errorf("tokenizer must not be nil")
		}
		c.tokenizer = t
		return nil
	}
}

// WithBudget sets the maximum number of tokens per chunk.
func WithBudget(n int) Option {
	return func(c *Chunker) error {
		if n <= 0 {
			return fmt.Errorf("budget must be positive, got %d", n)
		}
		c.budget = n
		return nil
	}
}

// WithOverlap sets the fraction of the budget shared by consecutive chunks.
func WithOverlap(f float64) Option {
	return func(c *Chunker) error {
		if f < 0 || f >= 1 {
			return fmt.Errorf("overlap must be in [0, 1), got %g", f)
		}
		c.overlap = f
		return nil
	}
}

// New creates a Chunker using WordTokenizer, a 750 token budget and 10% overlap.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		tokenizer: WordTokenizer{},
		budget:    DefaultBudget,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Budget returns the maximum tokens per chunk.
func (c *Chunker) Budget() int {
	return c.budget
}

// Step returns how many tokens each window advances.
func (c *Chunker) Step() int {
	return max(1, int(math.Floor(float64(c.budget)*(1-c.overlap))))
}

// Chunk windows the document. Window k starts at token k*Step and holds up
// to Budget tokens; the first window that reaches the last token is the
// final one. Each chunk records the lines, characters, pages and box it
// covers. Text without tokens yields no chunks.
func (c *Chunker) Chunk(src Source, lines []core.Line) []*core.Chunk {
	stream := locate.Stream(lines)
	tokens := c.tokenizer.Tokenize(stream)
	if len(tokens) == 0 {
		return nil
	}

	// byte offset of each line in the stream
	starts := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		starts[i] = pos
		pos += len(l.Text) + 1
	}

	var chunks []*core.Chunk
	step := c.Step()
	for first := 0; ; first += step {
		last := min(first+c.budget, len(tokens))
		from, to := trimRange(stream, tokens[first].Start, tokens[last-1].End)
		if from < to {
			chunk := c.window(src, stream, lines, starts, from, to)
			chunk.TokenCount = last - first
			chunks = append(chunks, chunk)
		}
		if last == len(tokens) {
			break
		}
	}

	for i, chunk := range chunks {
		chunk.ChunkIndex = i + 1
		chunk.TotalChunks = len(chunks)
		chunk.ID = core.ChunkID(src.DocumentID, src.Generation, chunk.ChunkIndex)
		chunk.Title = fmt.Sprintf("%s - Part %d/%d", src.Filename, chunk.ChunkIndex, chunk.TotalChunks)
	}
	return chunks
}

// trimRange narrows [from, to) to exclude surrounding whitespace, which
// subword tokenizers attach to tokens.
func trimRange(s string, from, to int) (int, int) {
	for from < to && isSpace(s[from]) {
		from++
	}
	for to > from && isSpace(s[to-1]) {
		to--
	}
	return from, to
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// window builds the chunk covering stream bytes [from, to).
func (c *Chunker) window(src Source, stream string, lines []core.Line, starts []int, from, to int) *core.Chunk {
	// first line ending after from, last line starting before to
	lo := sort.Search(len(lines), func(i int) bool {
		return starts[i]+len(lines[i].Text) > from
	})
	hi := sort.Search(len(lines), func(i int) bool {
		return starts[i] >= to
	}) - 1

	chunk := &core.Chunk{
		DocumentID: src.DocumentID,
		OwnerID:    src.OwnerID,
		Filename:   src.Filename,
		Content:    stream[from:to],
		LineStart:  lines[lo].Number,
		LineEnd:    lines[hi].Number,
		CharStart:  lines[lo].CharStart + utf8.RuneCountInString(stream[starts[lo]:from]),
		PageStart:  lines[lo].Page,
		PageEnd:    lines[hi].Page,
		Precision:  core.PrecisionExact,
	}
	chunk.CharEnd = chunk.CharStart + utf8.RuneCountInString(chunk.Content)
	for _, l := range lines[lo : hi+1] {
		chunk.BBox = chunk.BBox.Union(l.BBox)
		if l.Precision == core.PrecisionApproximate {
			chunk.Precision = core.PrecisionApproximate
		}
	}
	return chunk
}
