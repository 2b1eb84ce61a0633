// Package chunking cuts a document's line table into token-budgeted,
// overlapping chunks that keep their line, character, page and box ranges.
//
// Token counting is pluggable. WordTokenizer works offline and is the
// default; TiktokenTokenizer matches the embedding model's own count;
// LineTokenizer budgets in lines.
package chunking
