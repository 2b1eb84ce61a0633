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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/docscope/ai"
	"github.com/poiesic/docscope/chunking"
	"github.com/poiesic/docscope/extract"
	"github.com/poiesic/docscope/extract/ocr"
	"github.com/poiesic/docscope/index/remote"
	"github.com/poiesic/docscope/ingestion"
	"github.com/poiesic/docscope/scope"
	"github.com/poiesic/docscope/search"
)

// Tokenizer names accepted in [chunking].
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerWord     = "word"
)

// Config is the complete docscope configuration.
type Config struct {
	Storage       StorageConfig       `toml:"storage"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	SearchService SearchServiceConfig `toml:"search_service"`
	Search        SearchConfig        `toml:"search"`
	Chunking      ChunkingConfig      `toml:"chunking"`
	OCR           OCRConfig           `toml:"ocr"`
	Ingestion     IngestionConfig     `toml:"ingestion"`
	Images        ImagesConfig        `toml:"images"`
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	// Path is the badger directory holding documents and the chunk ledger.
	Path string `toml:"path"`
	// LocalIndex is the JSON file backing the local fallback index.
	LocalIndex string `toml:"local_index"`
	// ScratchDir receives staged uploads. Empty means the system temp dir.
	ScratchDir string `toml:"scratch_dir"`
}

// EmbeddingConfig configures the primary embedding service.
type EmbeddingConfig struct {
	APIType    string `toml:"api_type"`
	Host       string `toml:"host"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	APIVersion string `toml:"api_version"`
	Dimension  int    `toml:"dimension"`
	// RateLimit caps embedding requests per second. Zero is unlimited.
	RateLimit int `toml:"rate_limit"`
}

// SearchServiceConfig configures the remote search index. The remote tier
// is disabled when Endpoint is empty.
type SearchServiceConfig struct {
	Endpoint     string   `toml:"endpoint"`
	Index        string   `toml:"index"`
	APIKey       string   `toml:"api_key"`
	APIVersion   string   `toml:"api_version"`
	VectorField  string   `toml:"vector_field"`
	VectorQuery  bool     `toml:"vector_query"`
	BatchSize    int      `toml:"batch_size"`
	K            int      `toml:"k"`
	RateLimit    int      `toml:"rate_limit"`
	Timeout      Duration `toml:"timeout"`
	MaxAttempts  int      `toml:"max_attempts"`
	RetryDelay   Duration `toml:"retry_delay"`
	Strict       bool     `toml:"strict"`
	Mirror       bool     `toml:"mirror"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultTop int    `toml:"default_top"`
	Mode       string `toml:"mode"`
}

// ChunkingConfig sizes chunks.
type ChunkingConfig struct {
	Budget    int     `toml:"budget"`
	Overlap   float64 `toml:"overlap"`
	Tokenizer string  `toml:"tokenizer"`
	Encoding  string  `toml:"encoding"`
}

// OCRConfig configures optical character recognition of scanned pages.
type OCRConfig struct {
	Enabled       bool     `toml:"enabled"`
	MinTextLength int      `toml:"min_text_length"`
	DPI           int      `toml:"dpi"`
	BatchSize     int      `toml:"batch_size"`
	PageTimeout   Duration `toml:"page_timeout"`
	Languages     []string `toml:"languages"`
	LineBoxes     bool     `toml:"line_boxes"`
}

// IngestionConfig tunes the background pipeline.
type IngestionConfig struct {
	// PoolSize is the number of concurrent background jobs. Zero sizes the
	// pool from the CPU count.
	PoolSize             int      `toml:"pool_size"`
	JobTimeout           Duration `toml:"job_timeout"`
	EmbeddingBatch       int      `toml:"embedding_batch"`
	EmbeddingConcurrency int      `toml:"embedding_concurrency"`
	EmbeddingDelay       Duration `toml:"embedding_delay"`
}

// ImagesConfig enables extraction and description of embedded images.
type ImagesConfig struct {
	Enabled     bool   `toml:"enabled"`
	VisionHost  string `toml:"vision_host"`
	VisionModel string `toml:"vision_model"`
}

// Duration is a time.Duration written as a string ("30s", "1m30s") in TOML.
type Duration struct {
	time.Duration
}

// D wraps d as a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Path:       "docscope.db",
			LocalIndex: "local_index.json",
		},
		Embedding: EmbeddingConfig{
			APIType:    string(aiDefaults.APIType),
			Host:       aiDefaults.EmbeddingHost,
			Model:      aiDefaults.EmbeddingModel,
			APIKey:     aiDefaults.APIKey,
			APIVersion: aiDefaults.APIVersion,
			Dimension:  aiDefaults.Dimension,
		},
		SearchService: SearchServiceConfig{
			APIVersion:  remote.DefaultAPIVersion,
			VectorField: remote.DefaultVectorField,
			VectorQuery: true,
			BatchSize:   remote.DefaultBatchSize,
			K:           remote.DefaultK,
			RateLimit:   remote.DefaultRateLimit,
			Timeout:     D(remote.DefaultTimeout),
			MaxAttempts: remote.DefaultMaxAttempts,
			RetryDelay:  D(remote.DefaultRetryDelay),
		},
		Search: SearchConfig{
			DefaultTop: search.DefaultTop,
			Mode:       scope.Guarded.String(),
		},
		Chunking: ChunkingConfig{
			Budget:    chunking.DefaultBudget,
			Overlap:   chunking.DefaultOverlap,
			Tokenizer: TokenizerTiktoken,
			Encoding:  chunking.DefaultEncoding,
		},
		OCR: OCRConfig{
			Enabled:       true,
			MinTextLength: extract.DefaultMinTextLength,
			DPI:           ocr.DefaultDPI,
			BatchSize:     ocr.DefaultBatchSize,
			PageTimeout:   D(ocr.DefaultPageTimeout),
			Languages:     []string{"eng"},
			LineBoxes:     true,
		},
		Ingestion: IngestionConfig{
			EmbeddingBatch:       ingestion.DefaultEmbeddingBatch,
			EmbeddingConcurrency: ingestion.DefaultEmbeddingConcurrency,
			EmbeddingDelay:       D(ingestion.DefaultEmbeddingDelay),
		},
	}
}

// Load builds a configuration with priority: defaults, then each file in
// order, then environment variables. A .env file in the working directory
// is loaded into the environment first if present; variables already set
// win over it.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Storage.LocalIndex == "" {
		errs = append(errs, errors.New("storage.local_index is required"))
	}
	if err := c.AI().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SearchService.Endpoint != "" && c.SearchService.Index == "" {
		errs = append(errs, errors.New("search_service.index is required when an endpoint is set"))
	}
	if c.Search.DefaultTop <= 0 {
		errs = append(errs, errors.New("search.default_top must be positive"))
	}
	if _, err := scope.ParseMode(c.Search.Mode); err != nil {
		errs = append(errs, fmt.Errorf("search.mode: %w", err))
	}
	if c.Chunking.Budget <= 0 {
		errs = append(errs, errors.New("chunking.budget must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= 1 {
		errs = append(errs, errors.New("chunking.overlap must be in [0, 1)"))
	}
	switch c.Chunking.Tokenizer {
	case TokenizerTiktoken, TokenizerWord:
	default:
		errs = append(errs, fmt.Errorf("chunking.tokenizer: unknown tokenizer %q", c.Chunking.Tokenizer))
	}
	if c.OCR.Enabled && (c.OCR.DPI <= 0 || c.OCR.BatchSize <= 0) {
		errs = append(errs, errors.New("ocr.dpi and ocr.batch_size must be positive"))
	}
	if c.Ingestion.EmbeddingBatch <= 0 || c.Ingestion.EmbeddingConcurrency <= 0 {
		errs = append(errs, errors.New("ingestion embedding batch and concurrency must be positive"))
	}
	if c.Images.Enabled && c.Images.VisionModel == "" {
		errs = append(errs, errors.New("images.vision_model is required when images are enabled"))
	}
	return errors.Join(errs...)
}

// AI returns the embedding and vision settings as an ai.Config.
func (c *Config) AI() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithAPIType(ai.APIType(c.Embedding.APIType)),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithAPIVersion(c.Embedding.APIVersion),
		ai.WithDimension(c.Embedding.Dimension),
	}
	if c.Images.Enabled {
		opts = append(opts, ai.WithVision(c.Images.VisionHost, c.Images.VisionModel))
	}
	return ai.NewConfig(opts...)
}

// RemoteEnabled reports whether a remote search index is configured.
func (c *Config) RemoteEnabled() bool {
	return c.SearchService.Endpoint != ""
}

// Mode returns the configured default scope mode.
func (c *Config) Mode() scope.Mode {
	mode, err := scope.ParseMode(c.Search.Mode)
	if err != nil {
		return scope.Guarded
	}
	return mode
}

// LocalIndexPath resolves the local index file. A relative path is taken
// relative to the storage directory's parent so both live side by side.
func (c *Config) LocalIndexPath() string {
	if filepath.IsAbs(c.Storage.LocalIndex) {
		return c.Storage.LocalIndex
	}
	return filepath.Join(filepath.Dir(c.Storage.Path), c.Storage.LocalIndex)
}
