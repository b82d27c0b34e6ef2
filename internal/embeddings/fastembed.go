//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	Model string

	// CacheDir is the directory to cache model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Default 512.
	MaxLength int
}

// fastEmbedModels maps friendly model names to fastembed constants.
var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

var fastEmbedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbedProvider generates embeddings with local ONNX models. No
// network calls after the initial model download.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	dimension int
	mu        sync.RWMutex
}

// NewFastEmbedProvider creates a FastEmbed provider for the model.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	model, ok := fastEmbedModels[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := fastEmbedDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, cfg.Model)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		dimension: fastEmbedDimensions[model],
	}, nil
}

// EmbedDocuments generates embeddings with the "passage: " prefix the
// BGE models expect for documents.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vectors, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding with the "query: " prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vector, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the embedding dimension of the loaded model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX runtime resources.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		if err := p.model.Destroy(); err != nil {
			return fmt.Errorf("destroying fastembed model: %w", err)
		}
		p.model = nil
	}
	return nil
}
