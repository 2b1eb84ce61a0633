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

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docscope/core"
)

// Records are encoded field by field with MUS primitives. Every record type
// has a single visit function used for both sizing and writing, so the two
// passes cannot drift apart.

type encoder struct {
	bs     []byte
	n      int
	sizing bool
}

func (e *encoder) int(v int) {
	if e.sizing {
		e.n += varint.Int.Size(v)
		return
	}
	e.n += varint.Int.Marshal(v, e.bs[e.n:])
}

func (e *encoder) int64(v int64) {
	if e.sizing {
		e.n += varint.Int64.Size(v)
		return
	}
	e.n += varint.Int64.Marshal(v, e.bs[e.n:])
}

func (e *encoder) string(v string) {
	if e.sizing {
		e.n += ord.String.Size(v)
		return
	}
	e.n += ord.String.Marshal(v, e.bs[e.n:])
}

func (e *encoder) float64(v float64) {
	if e.sizing {
		e.n += raw.Float64.Size(v)
		return
	}
	e.n += raw.Float64.Marshal(v, e.bs[e.n:])
}

func (e *encoder) float32(v float32) {
	if e.sizing {
		e.n += raw.Float32.Size(v)
		return
	}
	e.n += raw.Float32.Marshal(v, e.bs[e.n:])
}

// time is stored as Unix microseconds; the zero time round-trips as zero.
func (e *encoder) time(v time.Time) {
	if v.IsZero() {
		e.int64(0)
		return
	}
	e.int64(v.UnixMicro())
}

func (e *encoder) bbox(b core.BBox) {
	e.float64(b.X)
	e.float64(b.Y)
	e.float64(b.W)
	e.float64(b.H)
}

func (e *encoder) vector(v []float32) {
	e.int(len(v))
	for _, f := range v {
		e.float32(f)
	}
}

type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (d *decoder) bbox() core.BBox {
	return core.BBox{X: d.float64(), Y: d.float64(), W: d.float64(), H: d.float64()}
}

func (d *decoder) vector() []float32 {
	size := d.int()
	if d.err != nil {
		return nil
	}
	// each float32 takes four bytes, so a larger length is corrupt
	if size < 0 || size*4 > len(d.bs)-d.n {
		d.err = fmt.Errorf("%w: vector length %d", ErrSerializationFailed, size)
		return nil
	}
	if size == 0 {
		return nil
	}
	v := make([]float32, size)
	for i := range v {
		v[i] = d.float32()
	}
	return v
}

func (d *decoder) finish(kind string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, kind, d.err)
	}
	return nil
}

func marshal(visit func(e *encoder)) []byte {
	sizer := &encoder{sizing: true}
	visit(sizer)
	e := &encoder{bs: make([]byte, sizer.n)}
	visit(e)
	return e.bs[:e.n]
}

func visitDocument(e *encoder, doc *core.Document) {
	e.string(string(doc.ID))
	e.string(doc.Name)
	e.string(doc.OwnerID)
	e.int(doc.PageCount)
	e.int(int(doc.Status))
	e.string(doc.Error)
	e.int(int(doc.Method))
	e.int(doc.Generation)
	e.int(doc.TotalChunks)
	e.int(doc.IndexedChunks)
	e.int(doc.TotalTokens)
	e.int(doc.ImageCount)
	e.time(doc.CreatedAt)
	e.time(doc.UpdatedAt)
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	return marshal(func(e *encoder) { visitDocument(e, doc) })
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := &decoder{bs: data}
	doc := &core.Document{
		ID:            core.DocumentID(d.string()),
		Name:          d.string(),
		OwnerID:       d.string(),
		PageCount:     d.int(),
		Status:        core.DocumentStatus(d.int()),
		Error:         d.string(),
		Method:        core.ExtractionMethod(d.int()),
		Generation:    d.int(),
		TotalChunks:   d.int(),
		IndexedChunks: d.int(),
		TotalTokens:   d.int(),
		ImageCount:    d.int(),
		CreatedAt:     d.time(),
		UpdatedAt:     d.time(),
	}
	if err := d.finish("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// ChunkRecord is a ledger entry: a chunk plus the generation that produced it.
type ChunkRecord struct {
	Generation int
	Chunk      *core.Chunk
}

func visitChunk(e *encoder, rec *ChunkRecord) {
	c := rec.Chunk
	e.int(rec.Generation)
	e.string(c.ID)
	e.string(string(c.DocumentID))
	e.string(c.OwnerID)
	e.string(c.Filename)
	e.string(c.Title)
	e.string(c.Content)
	e.int(c.TokenCount)
	e.int(c.LineStart)
	e.int(c.LineEnd)
	e.int(c.CharStart)
	e.int(c.CharEnd)
	e.int(c.PageStart)
	e.int(c.PageEnd)
	e.bbox(c.BBox)
	e.int(c.ChunkIndex)
	e.int(c.TotalChunks)
	e.int(int(c.Precision))
	e.int(int(c.Embedding.Source))
	e.string(c.Embedding.Model)
	e.vector(c.Embedding.Vector)
}

// MarshalChunkRecord serializes a ledger entry to bytes.
func MarshalChunkRecord(rec *ChunkRecord) []byte {
	return marshal(func(e *encoder) { visitChunk(e, rec) })
}

// UnmarshalChunkRecord deserializes a ledger entry from bytes.
func UnmarshalChunkRecord(data []byte) (*ChunkRecord, error) {
	d := &decoder{bs: data}
	rec := &ChunkRecord{Generation: d.int()}
	c := &core.Chunk{
		ID:          d.string(),
		DocumentID:  core.DocumentID(d.string()),
		OwnerID:     d.string(),
		Filename:    d.string(),
		Title:       d.string(),
		Content:     d.string(),
		TokenCount:  d.int(),
		LineStart:   d.int(),
		LineEnd:     d.int(),
		CharStart:   d.int(),
		CharEnd:     d.int(),
		PageStart:   d.int(),
		PageEnd:     d.int(),
		BBox:        d.bbox(),
		ChunkIndex:  d.int(),
		TotalChunks: d.int(),
		Precision:   core.Precision(d.int()),
	}
	c.Embedding.Source = core.EmbeddingSource(d.int())
	c.Embedding.Model = d.string()
	c.Embedding.Vector = d.vector()
	if err := d.finish("chunk"); err != nil {
		return nil, err
	}
	rec.Chunk = c
	return rec, nil
}

func visitImage(e *encoder, img *core.Image) {
	e.string(string(img.DocumentID))
	e.int(img.Page)
	e.int(img.Index)
	e.bbox(img.BBox)
	e.string(img.Hash)
	e.string(img.Analysis)
}

// MarshalImage serializes an Image to bytes.
func MarshalImage(img *core.Image) []byte {
	return marshal(func(e *encoder) { visitImage(e, img) })
}

// UnmarshalImage deserializes an Image from bytes.
func UnmarshalImage(data []byte) (*core.Image, error) {
	d := &decoder{bs: data}
	img := &core.Image{
		DocumentID: core.DocumentID(d.string()),
		Page:       d.int(),
		Index:      d.int(),
		BBox:       d.bbox(),
		Hash:       d.string(),
		Analysis:   d.string(),
	}
	if err := d.finish("image"); err != nil {
		return nil, err
	}
	return img, nil
}
