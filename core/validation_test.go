package core

import (
	"errors"
	"testing"
)

func validChunk() *Chunk {
	return &Chunk{
		ID:          "c1",
		DocumentID:  "doc",
		Content:     "some content",
		TokenCount:  10,
		LineStart:   1,
		LineEnd:     3,
		CharStart:   0,
		CharEnd:     12,
		ChunkIndex:  1,
		TotalChunks: 1,
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Chunk)
		budget  int
		wantErr error
	}{
		{name: "valid chunk", mutate: func(c *Chunk) {}, budget: 50},
		{name: "single line chunk", mutate: func(c *Chunk) { c.LineEnd = 1 }, budget: 50},
		{name: "no budget check", mutate: func(c *Chunk) { c.TokenCount = 1000 }, budget: 0},
		{name: "blank content", mutate: func(c *Chunk) { c.Content = "  \n" }, budget: 50, wantErr: ErrEmptyContent},
		{name: "line start zero", mutate: func(c *Chunk) { c.LineStart = 0 }, budget: 50, wantErr: ErrInvalidChunk},
		{name: "inverted lines", mutate: func(c *Chunk) { c.LineStart = 5 }, budget: 50, wantErr: ErrInvalidChunk},
		{name: "inverted chars", mutate: func(c *Chunk) { c.CharStart = 20 }, budget: 50, wantErr: ErrInvalidChunk},
		{name: "over budget", mutate: func(c *Chunk) { c.TokenCount = 51 }, budget: 50, wantErr: ErrInvalidChunk},
		{name: "index beyond total", mutate: func(c *Chunk) { c.ChunkIndex = 2 }, budget: 50, wantErr: ErrInvalidChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := validChunk()
			tt.mutate(chunk)
			err := ValidateChunk(chunk, tt.budget)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateChunk(nil, 0); !errors.Is(err, ErrInvalidChunk) {
		t.Errorf("ValidateChunk(nil) error = %v, want %v", err, ErrInvalidChunk)
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(&Document{ID: "a", Name: "deck.pdf"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDocument(&Document{ID: "a"}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if err := ValidateDocument(&Document{Name: "deck.pdf"}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}
