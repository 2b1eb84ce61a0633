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

package mock

import "github.com/poiesic/docscope/ai"

// MockProvider is a test double for ai.Provider.
type MockProvider struct {
	embedder *MockEmbedder
	analyzer *MockImageAnalyzer
}

var _ ai.Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider with default mock services.
// The analyzer is nil unless withVision is set.
func NewMockProvider(dim int, withVision bool) *MockProvider {
	p := &MockProvider{embedder: NewMockEmbedder(dim)}
	if withVision {
		p.analyzer = NewMockImageAnalyzer()
	}
	return p
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// ImageAnalyzer returns the mock analyzer, or nil.
func (p *MockProvider) ImageAnalyzer() ai.ImageAnalyzer {
	if p.analyzer == nil {
		return nil
	}
	return p.analyzer
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockAnalyzer returns the underlying mock analyzer, or nil.
func (p *MockProvider) GetMockAnalyzer() *MockImageAnalyzer {
	return p.analyzer
}
