// Package cache stores generated responses keyed by query embedding.
package cache

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

var tracer = otel.Tracer("chatbotd.cache")

// ErrMiss is returned by Lookup when no entry clears the similarity
// threshold.
var ErrMiss = errors.New("semantic cache miss")

// Metadata keys for cache entries.
const (
	metaOriginal = "original_text"
	metaEnhanced = "enhanced_content"
)

// Entry is one cached response.
type Entry struct {
	// OriginalText is what the user typed.
	OriginalText string

	// AugmentedText is the retrieval-augmented prompt text that
	// produced the response.
	AugmentedText string

	// Response is the assistant reply.
	Response string
}

// SemanticCache is an append-only response cache over a store
// collection. Put writes unconditionally: no dedup, no update in
// place, no expiry.
//
// The read path is an extension, off by default: the reference flow
// only ever writes. Enable lookups explicitly via LookupEnabled
// configuration and they short-circuit the completion call on a hit.
type SemanticCache struct {
	store      vectorstore.Store
	collection string
	threshold  float32
	logger     *logging.Logger
}

// New creates a SemanticCache over the given collection. threshold is
// the minimum similarity for a Lookup hit.
func New(store vectorstore.Store, collection string, threshold float32, logger *logging.Logger) (*SemanticCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SemanticCache{
		store:      store,
		collection: collection,
		threshold:  threshold,
		logger:     logger,
	}, nil
}

// Put stores one entry keyed by the query embedding.
func (c *SemanticCache) Put(ctx context.Context, embedding []float32, entry Entry) error {
	ctx, span := tracer.Start(ctx, "SemanticCache.Put")
	defer span.End()

	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}

	_, err := c.store.AddDocuments(ctx, c.collection, []vectorstore.Document{{
		Content: entry.Response,
		Vector:  embedding,
		Metadata: map[string]string{
			metaOriginal: entry.OriginalText,
			metaEnhanced: entry.AugmentedText,
		},
	}})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("caching response: %w", err)
	}
	return nil
}

// Lookup returns the nearest cached entry when its similarity clears
// the threshold, otherwise ErrMiss.
func (c *SemanticCache) Lookup(ctx context.Context, embedding []float32) (Entry, error) {
	ctx, span := tracer.Start(ctx, "SemanticCache.Lookup")
	defer span.End()

	if len(embedding) == 0 {
		return Entry{}, ErrMiss
	}

	results, err := c.store.SearchByVector(ctx, c.collection, embedding, 1, nil)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return Entry{}, ErrMiss
		}
		span.RecordError(err)
		return Entry{}, fmt.Errorf("cache lookup: %w", err)
	}
	if len(results) == 0 || results[0].Score < c.threshold {
		return Entry{}, ErrMiss
	}

	hit := results[0]
	span.SetAttributes(attribute.Float64("similarity", float64(hit.Score)))

	return Entry{
		OriginalText:  hit.Metadata[metaOriginal],
		AugmentedText: hit.Metadata[metaEnhanced],
		Response:      hit.Content,
	}, nil
}
