package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	// BaseURL is the API base URL.
	// For OpenAI: https://api.openai.com/v1
	// For TEI: http://localhost:8080/v1
	BaseURL string

	// Model is the embedding model, e.g. text-embedding-3-small or
	// BAAI/bge-small-en-v1.5 on TEI.
	Model string

	// APIKey authenticates the request. Optional for TEI.
	APIKey string

	// Dimension is the vector size the model produces.
	Dimension int
}

// OpenAIProvider generates embeddings through any OpenAI-compatible
// HTTP API via langchaingo.
type OpenAIProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	config    OpenAIConfig
	dimension int
}

// NewOpenAIProvider creates a provider for the configured endpoint.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for TEI.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  embedder,
		config:    config,
		dimension: config.Dimension,
	}, nil
}

// EmbedDocuments generates one vector per input text.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates a vector for a single query text.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the configured embedding dimension.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for the HTTP provider.
func (p *OpenAIProvider) Close() error {
	return nil
}
