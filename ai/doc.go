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

// Package ai provides abstractions for the remote AI services used by docscope.
//
// Embedder turns chunk text into vectors. ImageAnalyzer describes extracted
// images. Provider aggregates both for convenient initialization.
//
// Remote embedding is never allowed to block ingestion. Resilient wraps a
// primary Embedder with a deterministic fallback (see ai/fallback) and
// returns each vector together with its provenance, so vectors that carry no
// semantic signal can be told apart and upgraded later:
//
//	primary, err := openai.NewEmbedder(config)
//	embedder := ai.NewResilient(primary, fallback.New(config.Dimension))
//	emb := embedder.Embed(ctx, text) // emb.Source is primary or fallback
//
// # Implementation Packages
//
//   - ai/openai: OpenAI and Azure OpenAI implementations via langchaingo
//   - ai/fallback: hash-derived vectors used when the primary call fails
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
package ai
