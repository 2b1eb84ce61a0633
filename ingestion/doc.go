// Package ingestion turns uploaded documents into indexed chunks.
//
// The Pipeline runs each document through extraction, location mapping and
// chunking, then through its processors: embedding (with a deterministic
// fallback when the embedding service is down) and indexing (remote index
// first, local index when it is unavailable). Every run is a new
// generation; chunks from earlier generations are deleted once the new ones
// are indexed.
//
// Submit acknowledges an upload as soon as it is registered and processes
// it on a worker pool. Callers poll the document repository for the
// outcome: a document ends ready when at least one chunk was indexed and
// failed, with a message, otherwise. Scratch copies of uploads are removed
// on both paths.
package ingestion
