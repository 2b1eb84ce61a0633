// Package reembed upgrades chunks that were indexed with fallback vectors.
//
// When the embedding service is down during ingestion, chunks are indexed
// with deterministic fallback vectors and marked as such in the chunk
// ledger. A reembedding run walks those ledger entries in batches, embeds
// them with the primary embedder (retrying with exponential backoff),
// normalizes the vectors, re-uploads the chunks to the vector index and
// records the new provenance. Content and location of a chunk never change.
package reembed
