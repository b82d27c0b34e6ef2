// Package vectorstore defines the interface for vector storage operations
// and its implementations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates store connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrTextSearchUnsupported is returned by adapters without a text
	// index. Callers fall back to vector-only retrieval.
	ErrTextSearchUnsupported = errors.New("text search not supported by this store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Store is the interface for vector storage operations.
//
// The engine uses three collections: the product catalog, the chat
// history log, and the semantic response cache. All three share the same
// access pattern: append documents carrying pre-computed embeddings and
// string metadata, then read back by vector similarity, by lexical
// match, or by metadata filter.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default), supports all methods
//   - QdrantStore: external Qdrant over gRPC, no text index
type Store interface {
	// AddDocuments appends documents to a collection. Documents carry
	// their embedding vector; documents without one are stored for
	// metadata listing only and never surface in vector search.
	// Returns the ids of the added documents.
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error)

	// SearchByVector returns up to k documents nearest to the query
	// vector, best first, with similarity scores (higher = closer).
	// Filters, when non-nil, restrict results to documents whose
	// metadata matches every entry exactly.
	SearchByVector(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) ([]SearchResult, error)

	// SearchByText returns up to k documents ranked by lexical match
	// against the query text, best first. Adapters without a text index
	// return ErrTextSearchUnsupported.
	SearchByText(ctx context.Context, collection string, text string, k int, filters map[string]string) ([]SearchResult, error)

	// ListDocuments returns the documents matching the metadata filters
	// in insertion order. When limit is positive only the most recent
	// limit documents are returned. Used to reconstruct the session
	// message log.
	ListDocuments(ctx context.Context, collection string, filters map[string]string, limit int) ([]SearchResult, error)

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases store resources.
	Close() error
}
