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

// Package search runs scoped hybrid queries over the chunk index.
//
// The Engine builds a filter from the caller's scope, refusing guarded
// queries that carry no owner, embeds the query with the primary embedder
// when the primary backend can rank on vectors, and sends both to the tiered
// index. The remote backend combines keyword and vector relevance natively;
// the local backend ranks on keywords alone.
//
// Failures never surface as opaque errors. A refused scope, a degraded
// backend and a total backend failure are all flags on the Response.
package search
