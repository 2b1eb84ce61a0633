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

package ai

import (
	"errors"
	"strings"
)

// APIType selects the wire flavour of the embedding and vision services.
type APIType string

const (
	// APITypeOpenAI targets OpenAI or any OpenAI-compatible server.
	APITypeOpenAI APIType = "openai"
	// APITypeAzure targets Azure OpenAI deployments.
	APITypeAzure APIType = "azure"
)

// DefaultDimension matches text-embedding-ada-002.
const DefaultDimension = 1536

// Config holds configuration for the remote AI services.
type Config struct {
	// APIType selects OpenAI-compatible or Azure OpenAI endpoints.
	APIType APIType

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" or "https://myres.openai.azure.com"
	EmbeddingHost string

	// EmbeddingModel is the model (or Azure deployment) used for embeddings.
	EmbeddingModel string

	// APIKey authenticates against the service. Local servers accept "none".
	APIKey string

	// APIVersion is required by Azure OpenAI.
	APIVersion string

	// Dimension is the vector length every embedding must have.
	Dimension int

	// VisionHost and VisionModel configure image analysis.
	// Image analysis is disabled when VisionModel is empty.
	VisionHost  string
	VisionModel string
}

// ConfigOption mutates a Config.
type ConfigOption func(*Config)

func WithAPIType(t APIType) ConfigOption {
	return func(c *Config) {
		c.APIType = t
	}
}

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithAPIVersion(version string) ConfigOption {
	return func(c *Config) {
		c.APIVersion = version
	}
}

func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithVision enables image analysis against host using model.
func WithVision(host, model string) ConfigOption {
	return func(c *Config) {
		c.VisionHost = host
		c.VisionModel = model
	}
}

func DefaultConfig() *Config {
	return &Config{
		APIType:        APITypeOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "text-embedding-ada-002",
		APIKey:         "none",
		APIVersion:     "2023-05-15",
		Dimension:      DefaultDimension,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// VisionEnabled reports whether image analysis is configured.
func (c *Config) VisionEnabled() bool {
	return c.VisionModel != ""
}

func (c *Config) Normalize() {
	if c.APIType == "" {
		c.APIType = APITypeOpenAI
	}
	if c.VisionHost == "" {
		c.VisionHost = c.EmbeddingHost
	}
	// Azure endpoints are used as given
	if c.APIType != APITypeOpenAI {
		return
	}
	c.EmbeddingHost = ensureV1(c.EmbeddingHost)
	c.VisionHost = ensureV1(c.VisionHost)
}

// ensureV1 makes OpenAI-compatible hosts end with /v1.
func ensureV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.APIType != APITypeOpenAI && c.APIType != APITypeAzure {
		return errors.New("ai config: APIType must be openai or azure")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.APIType == APITypeAzure && (c.APIKey == "" || c.APIVersion == "") {
		return errors.New("ai config: azure requires APIKey and APIVersion")
	}
	return nil
}
