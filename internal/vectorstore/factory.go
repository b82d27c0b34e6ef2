package vectorstore

import (
	"fmt"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

// NewStore creates a Store from the configuration.
//
// The provider field selects the backend:
//   - "chromem" (default): embedded store, no external service. Full
//     hybrid retrieval (vector plus lexical).
//   - "qdrant": external Qdrant server over gRPC. Vector-only; text
//     search reports ErrTextSearchUnsupported and retrieval degrades
//     to vector-only mode.
func NewStore(cfg *config.Config, logger *logging.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.VectorStore.Chromem.Path,
			Compress: cfg.VectorStore.Chromem.Compress,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			APIKey:     cfg.VectorStore.Qdrant.APIKey.Value(),
			VectorSize: cfg.Embedding.Dimension,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
