package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docrag/internal/config"
)

// ErrGeneration wraps any failure of the external generation service.
var ErrGeneration = errors.New("generation failed")

// Generator is the boundary to the text-generation service: prompt in,
// plain text out. It is the only unbounded-latency call in the
// pipeline, so implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator calls an OpenAI-compatible chat endpoint through
// langchaingo, with a per-call timeout.
type OpenAIGenerator struct {
	llm     *openai.LLM
	model   string
	timeout time.Duration
}

const defaultTimeout = 60 * time.Second

func NewOpenAIGenerator(cfg *config.LLMConfig) (*OpenAIGenerator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference LLM: %w", err)
	}
	return &OpenAIGenerator{llm: llm, model: cfg.Model, timeout: defaultTimeout}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	log.Debug().Str("model", g.model).Int("prompt_chars", len(prompt)).Msg("generating content")

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w: %w", ErrGeneration, err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("generate: %w: empty response", ErrGeneration)
	}
	return res.Choices[0].Content, nil
}

// IsRetryable reports whether a generation failure is worth a
// backoff-and-retry (rate limiting, timeouts) as opposed to a
// permanent one (bad credentials, malformed request). Retry policy
// itself belongs to the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily")
}
