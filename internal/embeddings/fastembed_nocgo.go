//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when the binary was built
// without CGO. Use the openai provider instead.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available in this build (requires CGO)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is a stub for non-CGO builds.
type FastEmbedProvider struct{}

func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Dimension() int {
	return 0
}

func (p *FastEmbedProvider) Close() error {
	return nil
}
