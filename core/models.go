package core

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a compact identifier for derived entities such as chunks.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID identifies a document by the hash of its raw bytes, so
// re-uploading identical bytes resolves to the same document.
type DocumentID string

// DocumentIDFromBytes hashes raw document bytes with BLAKE2b-256.
func DocumentIDFromBytes(data []byte) DocumentID {
	return DocumentIDFor("", data)
}

// DocumentIDFor scopes the document hash to an owner, so two users uploading
// the same file get separate documents.
func DocumentIDFor(ownerID string, data []byte) DocumentID {
	h, _ := blake2b.New256(nil)
	if ownerID != "" {
		h.Write([]byte(ownerID))
		h.Write([]byte{0})
	}
	h.Write(data)
	return DocumentID(hex.EncodeToString(h.Sum(nil)))
}

// ChunkID derives the identifier of a chunk from its document, ingestion
// generation and 1-based index. Identical inputs always yield the same id.
func ChunkID(doc DocumentID, generation, index int) string {
	key := string(doc) + ":" + strconv.Itoa(generation) + ":" + strconv.Itoa(index)
	return strconv.FormatUint(uint64(IDFromContent(key)), 16)
}

// DocumentStatus tracks ingestion progress for a document.
type DocumentStatus int

const (
	StatusPending DocumentStatus = iota + 1
	StatusProcessing
	StatusReady
	StatusFailed
)

func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a document may move from s to next.
// Ready documents only re-enter processing on explicit re-ingestion.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	case StatusFailed, StatusReady:
		return next == StatusProcessing
	default:
		return next == StatusPending || next == StatusProcessing
	}
}

// Document is a registered upload and its ingestion state.
type Document struct {
	ID            DocumentID
	Name          string
	OwnerID       string // empty means unscoped
	PageCount     int
	Status        DocumentStatus
	Error         string // populated when Status is StatusFailed
	Method        ExtractionMethod
	Generation    int // incremented on every ingestion run
	TotalChunks   int
	IndexedChunks int
	TotalTokens   int
	ImageCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExtractionMethod records which path produced a document's text.
type ExtractionMethod int

const (
	MethodUnknown ExtractionMethod = iota
	MethodNative
	MethodOCR
)

func (m ExtractionMethod) String() string {
	switch m {
	case MethodNative:
		return "native"
	case MethodOCR:
		return "ocr"
	default:
		return "unknown"
	}
}

// BBox is an axis-aligned box in page coordinates (points, origin top-left).
// The zero value means the position is unknown.
type BBox struct {
	X, Y, W, H float64
}

// IsZero reports whether the box carries no position.
func (b BBox) IsZero() bool {
	return b.X == 0 && b.Y == 0 && b.W == 0 && b.H == 0
}

// Union returns the smallest box covering both b and o. Unknown boxes are
// ignored, so the union of a known and an unknown box is the known one.
func (b BBox) Union(o BBox) BBox {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	x0 := min(b.X, o.X)
	y0 := min(b.Y, o.Y)
	x1 := max(b.X+b.W, o.X+o.W)
	y1 := max(b.Y+b.H, o.Y+o.H)
	return BBox{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Span is the finest-grained recognized text unit on a page.
// Page is 1-based. Extractors set Line to the page-local row the span sits
// on; the location mapper rewrites it to the global line number and assigns
// char offsets.
type Span struct {
	Text      string
	Page      int
	Line      int
	CharStart int
	CharEnd   int
	BBox      BBox
}

// Page is one page of extracted text. It is never persisted.
type Page struct {
	Number      int // 1-based
	Text        string
	Spans       []Span // populated by layout-aware extraction, ordered by reading order
	Source      ExtractionMethod
	Placeholder bool // text is a marker such as "[Timeout Error]" rather than content
}

// Precision says how a location was derived.
type Precision int

const (
	// PrecisionExact locations come from layout data.
	PrecisionExact Precision = iota
	// PrecisionApproximate locations are derived from position in the text stream.
	PrecisionApproximate
)

func (p Precision) String() string {
	if p == PrecisionExact {
		return "exact"
	}
	return "approximate"
}

// Line is a document-global numbered line. Offsets are rune offsets into
// the document stream (all lines joined by "\n").
type Line struct {
	Number    int
	Page      int
	Text      string
	BBox      BBox
	CharStart int
	CharEnd   int
	Precision Precision
}

// EmbeddingSource marks where a vector came from.
type EmbeddingSource int

const (
	EmbeddingNone EmbeddingSource = iota
	EmbeddingPrimary
	EmbeddingFallback
)

func (s EmbeddingSource) String() string {
	switch s {
	case EmbeddingPrimary:
		return "primary"
	case EmbeddingFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Embedding is a vector plus its provenance.
type Embedding struct {
	Vector []float32
	Source EmbeddingSource
	Model  string
}

// IsFallback reports whether the vector carries no semantic signal.
func (e Embedding) IsFallback() bool {
	return e.Source == EmbeddingFallback
}

// Chunk is the indexable unit. Chunks are created once per ingestion
// generation and superseded, never updated, on re-ingestion.
type Chunk struct {
	ID          string
	DocumentID  DocumentID
	OwnerID     string
	Filename    string
	Title       string
	Content     string
	TokenCount  int
	LineStart   int
	LineEnd     int
	CharStart   int
	CharEnd     int
	PageStart   int
	PageEnd     int
	BBox        BBox
	ChunkIndex  int // 1-based
	TotalChunks int
	Precision   Precision
	Embedding   Embedding
}

// Image is an image extracted from a document page.
type Image struct {
	DocumentID DocumentID
	Page       int
	Index      int // position among the page's images
	BBox       BBox
	Hash       string
	Analysis   string
}

// DocumentStats summarizes what ingestion produced for a document.
type DocumentStats struct {
	DocumentID     DocumentID
	Chunks         int
	Tokens         int
	FirstPage      int
	LastPage       int
	Images         int
	FallbackChunks int
}
