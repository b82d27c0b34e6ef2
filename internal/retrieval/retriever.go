// Package retrieval implements hybrid retrieval with reciprocal rank
// fusion and the relevance gate.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/fusion"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

var tracer = otel.Tracer("chatbotd.retrieval")

// RankedResult is a fused retrieval candidate.
type RankedResult struct {
	// ID, Content and Metadata come from the stored document.
	ID       string
	Content  string
	Metadata map[string]string

	// Score is the fused reciprocal-rank score.
	Score float64

	// StoreScore is the score the gate judges: the vector similarity
	// when the candidate surfaced in the vector channel, otherwise the
	// lexical term-overlap score.
	StoreScore float32

	// Rank is the 1-based position in the fused ranking.
	Rank int
}

// Config holds retriever tuning.
type Config struct {
	// Limit caps candidates per channel and the fused result length.
	Limit int

	// FusionConstant is the reciprocal-rank smoothing constant.
	FusionConstant int

	// VectorWeight and LexicalWeight are the fusion channel weights.
	VectorWeight  float64
	LexicalWeight float64
}

// HybridRetriever queries the vector and lexical channels of a store
// and fuses both rankings.
//
// When the store has no text index the retriever degrades to
// vector-only mode for the life of the request. An empty query vector
// short-circuits to an empty result.
type HybridRetriever struct {
	store      vectorstore.Store
	collection string
	config     Config
	logger     *logging.Logger
}

// NewHybridRetriever creates a retriever over one collection.
func NewHybridRetriever(store vectorstore.Store, collection string, config Config, logger *logging.Logger) (*HybridRetriever, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if config.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", config.Limit)
	}
	if config.VectorWeight <= 0 || config.LexicalWeight <= 0 {
		return nil, fmt.Errorf("channel weights must be positive")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HybridRetriever{
		store:      store,
		collection: collection,
		config:     config,
		logger:     logger,
	}, nil
}

// Retrieve runs both channels for the query and returns the fused
// ranking, best first, at most Limit entries.
func (r *HybridRetriever) Retrieve(ctx context.Context, queryText string, queryVector []float32) ([]RankedResult, error) {
	ctx, span := tracer.Start(ctx, "HybridRetriever.Retrieve")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", r.collection),
		attribute.Int("limit", r.config.Limit),
	)

	if len(queryVector) == 0 {
		return nil, nil
	}

	vectorResults, err := r.store.SearchByVector(ctx, r.collection, queryVector, r.config.Limit, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vector channel: %w", err)
	}

	lexicalResults, err := r.store.SearchByText(ctx, r.collection, queryText, r.config.Limit, nil)
	vectorOnly := false
	if err != nil {
		if !errors.Is(err, vectorstore.ErrTextSearchUnsupported) {
			span.RecordError(err)
			return nil, fmt.Errorf("lexical channel: %w", err)
		}
		vectorOnly = true
		lexicalResults = nil
	}
	span.SetAttributes(attribute.Bool("vector_only", vectorOnly))

	lists := [][]string{idsOf(vectorResults)}
	weights := []float64{r.config.VectorWeight}
	if !vectorOnly {
		lists = append(lists, idsOf(lexicalResults))
		weights = append(weights, r.config.LexicalWeight)
	}

	fused, err := fusion.ReciprocalRank(lists, weights, r.config.FusionConstant)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fusing rankings: %w", err)
	}
	if len(fused) > r.config.Limit {
		fused = fused[:r.config.Limit]
	}

	// Vector-channel scores win when a candidate surfaced in both.
	byID := make(map[string]vectorstore.SearchResult, len(lexicalResults)+len(vectorResults))
	for _, res := range lexicalResults {
		byID[res.ID] = res
	}
	for _, res := range vectorResults {
		byID[res.ID] = res
	}

	results := make([]RankedResult, len(fused))
	for i, f := range fused {
		doc := byID[f.ID]
		results[i] = RankedResult{
			ID:         f.ID,
			Content:    doc.Content,
			Metadata:   doc.Metadata,
			Score:      f.Score,
			StoreScore: doc.Score,
			Rank:       i + 1,
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))

	r.logger.Debug(ctx, "hybrid retrieval complete",
		zap.String("collection", r.collection),
		zap.Int("vector_hits", len(vectorResults)),
		zap.Int("lexical_hits", len(lexicalResults)),
		zap.Bool("vector_only", vectorOnly),
		zap.Int("fused", len(results)),
	)

	return results, nil
}

func idsOf(results []vectorstore.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
