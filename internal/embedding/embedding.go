// Package embedding adapts langchaingo embedders to the pipeline's
// Embedder contract and tags vectors with the producing model version.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
)

// Embedder maps text to a fixed-dimension dense vector. Implementations
// must be deterministic for a fixed model version. ModelVersion
// identifies the vector space; vectors from different versions must
// never be mixed in one index.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelVersion() string
}

// LangchainEmbedder wraps a langchaingo embedder with its model identity.
type LangchainEmbedder struct {
	impl  *embeddings.EmbedderImpl
	model string
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (e *LangchainEmbedder) ModelVersion() string { return e.model }

// NewOllamaEmbedder builds an embedder backed by a local Ollama server.
func NewOllamaEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama embedder: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("ollama embedder ready")
	return &LangchainEmbedder{impl: impl, model: cfg.Model}, nil
}

// NewOpenAIEmbedder builds an embedder backed by an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai embedder: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("openai embedder ready")
	return &LangchainEmbedder{impl: impl, model: cfg.Model}, nil
}

// FromConfig picks the embedder implementation named by the config.
func FromConfig(cfg *config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}
