// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder, MockImageAnalyzer and MockProvider let tests run without
// external AI services. Default behavior is deterministic; custom behavior is
// injected through the exported func fields:
//
//	embedder := mock.NewMockEmbedder(8)
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("quota exceeded")
//	}
//	count := embedder.CallCount()
package mock
