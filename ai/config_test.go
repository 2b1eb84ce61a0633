package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, APITypeOpenAI, cfg.APIType)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-ada-002", cfg.EmbeddingModel)
	assert.Equal(t, DefaultDimension, cfg.Dimension)
	assert.False(t, cfg.VisionEnabled())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with azure options", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIType(APITypeAzure),
			WithEmbeddingHost("https://res.openai.azure.com"),
			WithEmbeddingModel("ada-deployment"),
			WithAPIKey("secret"),
			WithAPIVersion("2024-02-01"),
		)

		assert.Equal(t, APITypeAzure, cfg.APIType)
		assert.Equal(t, "https://res.openai.azure.com", cfg.EmbeddingHost)
		assert.Equal(t, "ada-deployment", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, "2024-02-01", cfg.APIVersion)
	})

	t.Run("with vision", func(t *testing.T) {
		cfg := NewConfig(WithVision("http://vision:8080", "gpt-4o"))
		assert.True(t, cfg.VisionEnabled())
		assert.Equal(t, "gpt-4o", cfg.VisionModel)
	})

	t.Run("with dimension", func(t *testing.T) {
		cfg := NewConfig(WithDimension(384))
		assert.Equal(t, 384, cfg.Dimension)
	})
}

func TestConfigNormalize(t *testing.T) {
	t.Run("adds /v1 to openai hosts", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://localhost:11434/"))
		cfg.Normalize()
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("vision host defaults to embedding host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://localhost:11434"), WithVision("", "llava"))
		cfg.Normalize()
		assert.Equal(t, "http://localhost:11434/v1", cfg.VisionHost)
	})

	t.Run("leaves azure hosts alone", func(t *testing.T) {
		cfg := NewConfig(WithAPIType(APITypeAzure), WithEmbeddingHost("https://res.openai.azure.com"))
		cfg.Normalize()
		assert.Equal(t, "https://res.openai.azure.com", cfg.EmbeddingHost)
	})

	t.Run("empty type becomes openai", func(t *testing.T) {
		cfg := &Config{}
		cfg.Normalize()
		assert.Equal(t, APITypeOpenAI, cfg.APIType)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ConfigOption
		wantErr string
	}{
		{name: "defaults are valid"},
		{
			name:    "unknown api type",
			opts:    []ConfigOption{WithAPIType("bedrock")},
			wantErr: "APIType",
		},
		{
			name:    "missing host",
			opts:    []ConfigOption{WithEmbeddingHost("")},
			wantErr: "EmbeddingHost",
		},
		{
			name:    "missing model",
			opts:    []ConfigOption{WithEmbeddingModel("")},
			wantErr: "EmbeddingModel",
		},
		{
			name:    "zero dimension",
			opts:    []ConfigOption{WithDimension(0)},
			wantErr: "Dimension",
		},
		{
			name:    "azure without key",
			opts:    []ConfigOption{WithAPIType(APITypeAzure), WithAPIKey("")},
			wantErr: "azure",
		},
		{
			name: "azure complete",
			opts: []ConfigOption{WithAPIType(APITypeAzure), WithAPIKey("k"), WithAPIVersion("2023-05-15")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
