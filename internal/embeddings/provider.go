// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates the provider failed to produce vectors.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")
)

// Provider generates embedding vectors for texts.
type Provider interface {
	// EmbedDocuments generates one vector per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a vector for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates an embedding provider from the configuration.
//
// Providers:
//   - "openai": any OpenAI-compatible HTTP API, including TEI
//     (Text Embeddings Inference) servers
//   - "tei": alias for "openai", kept for config readability
//   - "fastembed": local ONNX models, requires a CGO build
//
// When cfg.RateLimit is positive the provider is wrapped with a
// client-side rate limiter.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.Provider {
	case "openai", "tei", "":
		provider, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey.Value(),
			Dimension: cfg.Dimension,
		})
	case "fastembed":
		provider, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		provider = NewRateLimited(provider, cfg.RateLimit)
	}
	return provider, nil
}
