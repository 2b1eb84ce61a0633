package mock

import (
	"context"
	"fmt"
	"sync"
)

// MockImageAnalyzer is a test double for ai.ImageAnalyzer.
type MockImageAnalyzer struct {
	// AnalyzeFunc is called by AnalyzeImage if set.
	AnalyzeFunc func(ctx context.Context, data []byte, mimeType string) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockImageAnalyzer creates an analyzer that describes images by size.
func NewMockImageAnalyzer() *MockImageAnalyzer {
	return &MockImageAnalyzer{}
}

// AnalyzeImage returns a canned description unless AnalyzeFunc is set.
func (m *MockImageAnalyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, data, mimeType)
	}
	return fmt.Sprintf("image of %d bytes", len(data)), nil
}

// CallCount returns the number of AnalyzeImage calls.
func (m *MockImageAnalyzer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
