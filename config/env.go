package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variables on top of the loaded
// configuration. DOCSCOPE_* names win over the AZURE_* names used by
// existing deployments when both are set.
func applyEnvOverrides(c *Config) error {
	e := &envReader{}

	// Storage
	e.str(&c.Storage.Path, "DOCSCOPE_DB_PATH")
	e.str(&c.Storage.LocalIndex, "DOCSCOPE_LOCAL_INDEX")
	e.str(&c.Storage.ScratchDir, "DOCSCOPE_SCRATCH_DIR")

	// Embedding service
	if host := os.Getenv("AZURE_OPENAI_ENDPOINT"); host != "" {
		c.Embedding.APIType = "azure"
		c.Embedding.Host = host
	}
	e.str(&c.Embedding.APIKey, "AZURE_OPENAI_API_KEY")
	e.str(&c.Embedding.Model, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	e.str(&c.Embedding.APIVersion, "AZURE_OPENAI_API_VERSION")
	e.str(&c.Embedding.APIType, "DOCSCOPE_EMBEDDING_API_TYPE")
	e.str(&c.Embedding.Host, "DOCSCOPE_EMBEDDING_HOST")
	e.str(&c.Embedding.Model, "DOCSCOPE_EMBEDDING_MODEL")
	e.str(&c.Embedding.APIKey, "DOCSCOPE_EMBEDDING_API_KEY")
	e.str(&c.Embedding.APIVersion, "DOCSCOPE_EMBEDDING_API_VERSION")
	e.int(&c.Embedding.Dimension, "DOCSCOPE_EMBEDDING_DIMENSION")
	e.int(&c.Embedding.RateLimit, "DOCSCOPE_EMBEDDING_RATE_LIMIT")

	// Remote search index
	e.str(&c.SearchService.Endpoint, "AZURE_SEARCH_ENDPOINT")
	e.str(&c.SearchService.Index, "AZURE_SEARCH_INDEX")
	e.str(&c.SearchService.APIKey, "AZURE_SEARCH_API_KEY")
	e.str(&c.SearchService.VectorField, "AZURE_SEARCH_EMBEDDING_FIELD")
	e.bool(&c.SearchService.VectorQuery, "AZURE_SEARCH_USE_VECTOR_QUERY")
	e.str(&c.SearchService.Endpoint, "DOCSCOPE_SEARCH_ENDPOINT")
	e.str(&c.SearchService.Index, "DOCSCOPE_SEARCH_INDEX")
	e.str(&c.SearchService.APIKey, "DOCSCOPE_SEARCH_API_KEY")
	e.bool(&c.SearchService.Strict, "DOCSCOPE_SEARCH_STRICT")
	e.bool(&c.SearchService.Mirror, "DOCSCOPE_SEARCH_MIRROR")
	e.duration(&c.SearchService.Timeout, "DOCSCOPE_SEARCH_TIMEOUT")

	// Query defaults
	e.str(&c.Search.Mode, "SEARCH_MODE")
	e.str(&c.Search.Mode, "DOCSCOPE_SEARCH_MODE")
	e.int(&c.Search.DefaultTop, "DOCSCOPE_SEARCH_TOP")

	// Chunking
	e.int(&c.Chunking.Budget, "TOKEN_CHUNK_SIZE")
	e.int(&c.Chunking.Budget, "DOCSCOPE_CHUNK_BUDGET")
	e.float(&c.Chunking.Overlap, "DOCSCOPE_CHUNK_OVERLAP")
	e.str(&c.Chunking.Tokenizer, "DOCSCOPE_TOKENIZER")

	// OCR
	e.bool(&c.OCR.Enabled, "DOCSCOPE_OCR_ENABLED")
	e.int(&c.OCR.MinTextLength, "DOCSCOPE_OCR_MIN_TEXT")
	e.int(&c.OCR.DPI, "DOCSCOPE_OCR_DPI")
	e.int(&c.OCR.BatchSize, "DOCSCOPE_OCR_BATCH_SIZE")
	e.duration(&c.OCR.PageTimeout, "DOCSCOPE_OCR_PAGE_TIMEOUT")
	if langs := os.Getenv("DOCSCOPE_OCR_LANGUAGES"); langs != "" {
		c.OCR.Languages = splitList(langs)
	}

	// Ingestion
	e.int(&c.Ingestion.PoolSize, "DOCSCOPE_POOL_SIZE")
	e.duration(&c.Ingestion.JobTimeout, "DOCSCOPE_JOB_TIMEOUT")
	e.int(&c.Ingestion.EmbeddingBatch, "DOCSCOPE_EMBEDDING_BATCH")
	e.int(&c.Ingestion.EmbeddingConcurrency, "DOCSCOPE_EMBEDDING_CONCURRENCY")
	e.duration(&c.Ingestion.EmbeddingDelay, "DOCSCOPE_EMBEDDING_DELAY")

	// Images
	e.bool(&c.Images.Enabled, "ENABLE_IMAGE_ANALYSIS")
	e.bool(&c.Images.Enabled, "DOCSCOPE_IMAGES_ENABLED")
	e.str(&c.Images.VisionHost, "DOCSCOPE_VISION_HOST")
	e.str(&c.Images.VisionModel, "DOCSCOPE_VISION_MODEL")

	return e.err
}

// envReader applies typed variables and remembers the first parse error.
type envReader struct {
	err error
}

func (e *envReader) str(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) int(dst *int, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = n
}

func (e *envReader) float(dst *float64, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(dst *bool, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(dst *Duration, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	dst.Duration = d
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value for %s: %w", name, err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
