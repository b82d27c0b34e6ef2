package embeddings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
)

// fakeProvider counts calls and returns fixed vectors.
type fakeProvider struct {
	calls int
	dim   int
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return make([]float32, f.dim), nil
}

func (f *fakeProvider) Dimension() int { return f.dim }
func (f *fakeProvider) Close() error   { return nil }

func TestNewProvider(t *testing.T) {
	t.Run("unknown provider rejected", func(t *testing.T) {
		_, err := NewProvider(config.EmbeddingConfig{Provider: "bert-as-a-service"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("openai requires base url", func(t *testing.T) {
		_, err := NewProvider(config.EmbeddingConfig{Provider: "openai", Model: "m", Dimension: 384})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("openai requires dimension", func(t *testing.T) {
		_, err := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://localhost:8080/v1", Model: "m"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("tei aliases openai", func(t *testing.T) {
		p, err := NewProvider(config.EmbeddingConfig{
			Provider:  "tei",
			BaseURL:   "http://localhost:8080/v1",
			Model:     "BAAI/bge-small-en-v1.5",
			Dimension: 384,
		})
		require.NoError(t, err)
		assert.Equal(t, 384, p.Dimension())
	})
}

func TestRateLimited(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates to inner provider", func(t *testing.T) {
		fake := &fakeProvider{dim: 3}
		limited := NewRateLimited(fake, 1000)

		vec, err := limited.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		assert.Len(t, vec, 3)

		vecs, err := limited.EmbedDocuments(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vecs, 2)
		assert.Equal(t, 2, fake.calls)
		assert.Equal(t, 3, limited.Dimension())
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		fake := &fakeProvider{dim: 3}
		limited := NewRateLimited(fake, 0.001)

		// Drain the single burst token.
		_, err := limited.EmbedQuery(ctx, "first")
		require.NoError(t, err)

		cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = limited.EmbedQuery(cancelCtx, "second")
		assert.Error(t, err)
		assert.Equal(t, 1, fake.calls)
	})
}
