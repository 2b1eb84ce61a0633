package badger

import (
	"encoding/binary"

	"github.com/poiesic/docscope/core"
)

// Key prefixes for different data types
const (
	documentPrefix      = "docrec:"
	chunkPrefix         = "chkrec:"
	chunkFallbackPrefix = "chkfbk:"
	imagePrefix         = "imgrec:"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.DocumentID) []byte {
	return []byte(documentPrefix + string(id))
}

// makeChunkDocPrefix generates the prefix shared by a document's ledger entries.
// Format: prefix:docID:
func makeChunkDocPrefix(id core.DocumentID) []byte {
	return []byte(chunkPrefix + string(id) + ":")
}

// makeChunkKey generates a composite ledger key.
// Format: prefix:docID:generation:index
func makeChunkKey(id core.DocumentID, generation, index int) []byte {
	prefix := makeChunkDocPrefix(id)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// BigEndian keeps generations and indices in numeric order
	binary.BigEndian.PutUint64(buf[offset:], uint64(generation))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// chunkKeyGeneration extracts the generation from a ledger key built by makeChunkKey.
func chunkKeyGeneration(key []byte) int {
	if len(key) < 16 {
		return 0
	}
	return int(binary.BigEndian.Uint64(key[len(key)-16 : len(key)-8]))
}

// makeChunkFallbackKey generates the fallback-embedding index key for a ledger key.
// Format: prefix:ledgerKey
func makeChunkFallbackKey(ledgerKey []byte) []byte {
	buf := make([]byte, 0, len(chunkFallbackPrefix)+len(ledgerKey))
	buf = append(buf, chunkFallbackPrefix...)
	return append(buf, ledgerKey...)
}

// makeImageDocPrefix generates the prefix shared by a document's images.
func makeImageDocPrefix(id core.DocumentID) []byte {
	return []byte(imagePrefix + string(id) + ":")
}

// makeImageKey generates a composite key for an image.
// Format: prefix:docID:page:index
func makeImageKey(id core.DocumentID, page, index int) []byte {
	prefix := makeImageDocPrefix(id)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(page))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}
