package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IDFromContent(tt.content) != IDFromContent(tt.content) {
				t.Errorf("IDFromContent() produced different IDs for same content")
			}
		})
	}

	if IDFromContent("content1") == IDFromContent("content2") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestDocumentIDFromBytes(t *testing.T) {
	a := DocumentIDFromBytes([]byte("%PDF-1.4 one"))
	b := DocumentIDFromBytes([]byte("%PDF-1.4 one"))
	c := DocumentIDFromBytes([]byte("%PDF-1.4 two"))

	if a != b {
		t.Errorf("identical bytes produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different bytes produced the same id")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
}

func TestDocumentIDFor(t *testing.T) {
	data := []byte("%PDF-1.4 shared")
	if DocumentIDFor("", data) != DocumentIDFromBytes(data) {
		t.Error("unscoped id differs from DocumentIDFromBytes")
	}
	if DocumentIDFor("u1", data) == DocumentIDFor("u2", data) {
		t.Error("different owners produced the same id")
	}
	if DocumentIDFor("u1", data) != DocumentIDFor("u1", data) {
		t.Error("DocumentIDFor is not deterministic")
	}
}

func TestChunkID(t *testing.T) {
	doc := DocumentID("abc")
	if ChunkID(doc, 1, 1) != ChunkID(doc, 1, 1) {
		t.Error("ChunkID is not deterministic")
	}
	if ChunkID(doc, 1, 1) == ChunkID(doc, 2, 1) {
		t.Error("generations must produce distinct chunk ids")
	}
	if ChunkID(doc, 1, 1) == ChunkID(doc, 1, 2) {
		t.Error("indices must produce distinct chunk ids")
	}
}

func TestDocumentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		want     bool
	}{
		{0, StatusPending, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusReady, false},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusReady, false},
		{StatusReady, StatusProcessing, true},
		{StatusReady, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBBox(t *testing.T) {
	t.Run("zero is unknown", func(t *testing.T) {
		if !(BBox{}).IsZero() {
			t.Error("zero box should be unknown")
		}
		if (BBox{X: 1}).IsZero() {
			t.Error("box with position should not be unknown")
		}
	})

	t.Run("union covers both", func(t *testing.T) {
		got := BBox{X: 10, Y: 10, W: 10, H: 5}.Union(BBox{X: 5, Y: 20, W: 10, H: 5})
		want := BBox{X: 5, Y: 10, W: 15, H: 15}
		if got != want {
			t.Errorf("Union() = %+v, want %+v", got, want)
		}
	})

	t.Run("union ignores unknown", func(t *testing.T) {
		known := BBox{X: 1, Y: 2, W: 3, H: 4}
		if got := (BBox{}).Union(known); got != known {
			t.Errorf("Union() = %+v, want %+v", got, known)
		}
		if got := known.Union(BBox{}); got != known {
			t.Errorf("Union() = %+v, want %+v", got, known)
		}
	})
}
