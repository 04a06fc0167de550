// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"scalable-rag-engine/internal/config"
	"scalable-rag-engine/internal/domain/ports/adapter"
)

const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNoop   = "noop"
)

// ResolveProvider picks the provider for a model name: explicit configuration
// wins, then the model family, then def.
func ResolveProvider(configured, model, def string) string {
	if p := strings.ToLower(strings.TrimSpace(configured)); p != "" {
		return p
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return ProviderOpenAI
	case strings.HasPrefix(l, "llama"), strings.HasPrefix(l, "mixtral"), strings.HasPrefix(l, "gemma"):
		return ProviderGroq
	default:
		return strings.ToLower(def)
	}
}

// NewGenerator builds the configured Generator wrapped in the concurrency
// limiter.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (adapter.Generator, error) {
	var (
		g   adapter.Generator
		err error
	)
	switch p := ResolveProvider(cfg.Provider, cfg.DefaultModel, ProviderOpenAI); p {
	case ProviderGroq:
		g, err = NewOpenAIAdapter(ProviderGroq, cfg.GroqKey, cfg.GroqBaseURL, cfg.DefaultModel, cfg.MaxOutputTokens)
	case ProviderOpenAI:
		g, err = NewOpenAIAdapter(ProviderOpenAI, cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, cfg.MaxOutputTokens)
	case ProviderGemini:
		g, err = NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.DefaultModel, cfg.MaxOutputTokens)
	case ProviderNoop:
		g = NewNoopAIAdapter()
	default:
		return nil, fmt.Errorf("unknown ai provider %q", p)
	}
	if err != nil {
		return nil, err
	}
	return NewLimitedAI(g, cfg.ConcurrentLimit), nil
}

// NewEmbedder builds the configured Embedder producing vectors of dim values.
func NewEmbedder(ctx context.Context, cfg config.AIConfig, dim int) (adapter.Embedder, error) {
	switch p := strings.ToLower(cfg.EmbeddingProvider); p {
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.EmbeddingModel, dim)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, dim)
	case ProviderNoop:
		return NewNoopEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", p)
	}
}
