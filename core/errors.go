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

package core

import "errors"

// Pipeline failure taxonomy
var (
	// ErrExtraction indicates the document has no pages or cannot be read.
	ErrExtraction = errors.New("extraction failed")

	// ErrOCRExhausted indicates OCR produced no usable text on any page.
	ErrOCRExhausted = errors.New("ocr produced no usable text")

	// ErrEmbeddingUnavailable indicates the primary embedder failed.
	// Ingestion recovers with a fallback vector.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexWrite indicates some chunks could not be written to the index.
	ErrIndexWrite = errors.New("index write failed")

	// ErrBackendUnavailable indicates an index backend could not serve a call.
	ErrBackendUnavailable = errors.New("index backend unavailable")

	// ErrScopeViolation indicates a guarded query carried no owner.
	ErrScopeViolation = errors.New("guarded scope requires an owner")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTransition indicates a status change that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates the document name is empty.
	ErrEmptyName = errors.New("document name cannot be empty")
)
