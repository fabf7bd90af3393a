package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store        StoreConfig `yaml:"store"`
	RAG          RAGConfig   `yaml:"rag"`
	EmbedLLM     LLMConfig   `yaml:"embed_llm"`
	InferenceLLM LLMConfig   `yaml:"inference_llm"`
	Database     DBConfig    `yaml:"database"`
}

// StoreConfig locates the on-disk vector store.
type StoreConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// RAGConfig holds the chunking and retrieval knobs consumed by the core.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`    // tokens per chunk
	ChunkOverlap int    `yaml:"chunk_overlap"` // tokens shared between adjacent chunks
	TopK         int    `yaml:"top_k"`
	Encoding     string `yaml:"encoding"` // tiktoken encoding name
}

// LLMConfig describes one model endpoint (embedding or inference).
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "ollama"
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"` // embedding models only
}

// DBConfig is only used when the Postgres backend is selected.
type DBConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Key     string `yaml:"key"`
	Debug   bool   `yaml:"debug"`
}

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 128
	defaultTopK         = 4
	defaultEncoding     = "cl100k_base"
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.Encoding == "" {
		c.RAG.Encoding = defaultEncoding
	}
}

// Validate rejects invalid configuration before any work is done.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: chunk_size must be > 0, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("invalid config: chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("invalid config: top_k must be >= 1, got %d", c.RAG.TopK)
	}
	if c.EmbedLLM.Dimension <= 0 {
		return fmt.Errorf("invalid config: embed_llm.dimension must be > 0, got %d", c.EmbedLLM.Dimension)
	}
	return nil
}
