// Package config provides configuration loading for ragd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, EMBEDDING_BASE_URL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Store      StoreConfig      `koanf:"store"`
	Rerank     RerankConfig     `koanf:"rerank"`
	Generation GenerationConfig `koanf:"generation"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Query      QueryConfig      `koanf:"query"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider selects the backend: "tei" or "openai".
	Provider string `koanf:"provider"`

	// BaseURL is the embedding server URL.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// Dimension is the embedding vector size. Must match the model output.
	Dimension int `koanf:"dimension"`

	// APIKey authenticates against OpenAI-compatible endpoints. Unused for TEI.
	APIKey Secret `koanf:"api_key"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	// Backend selects the store: "qdrant" or "chromem".
	Backend string `koanf:"backend"`

	// Collection is the collection holding all tenants' chunks.
	Collection string `koanf:"collection"`

	Qdrant  QdrantConfig  `koanf:"qdrant"`
	Chromem ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// ChromemConfig holds embedded chromem-go settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// RerankConfig holds reranker configuration.
type RerankConfig struct {
	// Provider selects the backend: "tei" (cross-encoder server) or
	// "simple" (in-process term overlap).
	Provider string `koanf:"provider"`

	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	Model     string   `koanf:"model"`
	MaxTokens int      `koanf:"max_tokens"`
	Timeout   Duration `koanf:"timeout"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	ChunkSize         int      `koanf:"chunk_size"`
	ChunkOverlap      int      `koanf:"chunk_overlap"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
	MaxUploadMB       int      `koanf:"max_upload_mb"`
	TempDir           string   `koanf:"temp_dir"`
}

// QueryConfig holds retrieval pipeline limits.
type QueryConfig struct {
	// RetrievalLimit is the candidate count fetched from the vector store.
	// Deliberately larger than RerankLimit to give the reranker a wide pool.
	RetrievalLimit int `koanf:"retrieval_limit"`

	// RerankLimit is the context chunk count passed to generation.
	RerankLimit int `koanf:"rerank_limit"`
}

// NewDefaultConfig returns the default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: logging.NewDefaultConfig(),
		Embedding: EmbeddingConfig{
			Provider:  "tei",
			BaseURL:   "http://localhost:8081",
			Model:     "BAAI/bge-small-en-v1.5",
			Dimension: 384,
		},
		Store: StoreConfig{
			Backend:    "qdrant",
			Collection: "ragd_chunks",
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Chromem: ChromemConfig{
				Path: "data/vectorstore",
			},
		},
		Rerank: RerankConfig{
			Provider: "tei",
			BaseURL:  "http://localhost:8082",
			Model:    "BAAI/bge-reranker-base",
		},
		Generation: GenerationConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   Duration(60 * time.Second),
		},
		Ingest: IngestConfig{
			ChunkSize:         1500,
			ChunkOverlap:      200,
			AllowedExtensions: []string{".pdf", ".txt", ".md", ".html"},
			MaxUploadMB:       50,
			TempDir:           "data/temp",
		},
		Query: QueryConfig{
			RetrievalLimit: 50,
			RerankLimit:    10,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding base URL required")
	}
	switch c.Store.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store collection required")
	}
	switch c.Rerank.Provider {
	case "tei", "simple":
	default:
		return fmt.Errorf("unknown rerank provider %q", c.Rerank.Provider)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.Ingest.MaxUploadMB)
	}
	if c.Query.RetrievalLimit <= 0 {
		return fmt.Errorf("retrieval limit must be positive, got %d", c.Query.RetrievalLimit)
	}
	if c.Query.RerankLimit <= 0 || c.Query.RerankLimit > c.Query.RetrievalLimit {
		return fmt.Errorf("rerank limit %d must be in (0, retrieval limit %d]", c.Query.RerankLimit, c.Query.RetrievalLimit)
	}
	return nil
}
