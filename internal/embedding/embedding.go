package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docrag/internal/config"
)

// Func is the embedding boundary: UTF-8 text in, fixed-dimension
// vector out. Both the ingestion and query paths receive the same
// Func, and the store treats it as a black box.
type Func func(ctx context.Context, text string) ([]float32, error)

// NewEmbedder creates an embedder against an OpenAI-compatible
// endpoint (OpenRouter etc.).
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewOllamaEmbedder creates an embedder against a local ollama server.
func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewFunc builds the provider-appropriate embedder from config and
// returns it as a plain Func.
func NewFunc(cfg *config.LLMConfig) (Func, error) {
	var (
		embedder *embeddings.EmbedderImpl
		err      error
	)
	switch cfg.Provider {
	case "ollama":
		embedder, err = NewOllamaEmbedder(cfg)
	default:
		embedder, err = NewEmbedder(cfg)
	}
	if err != nil {
		return nil, err
	}
	return FromEmbedder(embedder), nil
}

// FromEmbedder adapts a langchaingo embedder to Func.
func FromEmbedder(e *embeddings.EmbedderImpl) Func {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
