package router

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/embeddings"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

// DefaultScoreFloor is the minimum nearest-sample similarity for a
// classification to stick; below it the query routes to chitchat.
const DefaultScoreFloor float32 = 0.3

// EmbeddingRouter classifies by nearest-neighbor search over
// pre-embedded route samples. Ties go to the route declared first.
type EmbeddingRouter struct {
	routes     []Route
	samples    [][][]float32
	provider   embeddings.Provider
	scoreFloor float32
	logger     *logging.Logger
}

// NewEmbeddingRouter embeds every sample of every route once. An
// embedding failure here is a configuration problem and aborts
// construction.
func NewEmbeddingRouter(ctx context.Context, routes []Route, provider embeddings.Provider, scoreFloor float32, logger *logging.Logger) (*EmbeddingRouter, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding strategy needs a provider", ErrInvalidConfig)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: at least one route required", ErrInvalidConfig)
	}
	if scoreFloor <= 0 {
		scoreFloor = DefaultScoreFloor
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	samples := make([][][]float32, len(routes))
	for i, route := range routes {
		if len(route.Samples) == 0 {
			return nil, fmt.Errorf("%w: route %q has no samples", ErrInvalidConfig, route.Name)
		}
		vectors, err := provider.EmbedDocuments(ctx, route.Samples)
		if err != nil {
			return nil, fmt.Errorf("embedding samples for route %q: %w", route.Name, err)
		}
		samples[i] = vectors
	}

	return &EmbeddingRouter{
		routes:     routes,
		samples:    samples,
		provider:   provider,
		scoreFloor: scoreFloor,
		logger:     logger,
	}, nil
}

// Classify embeds the query and assigns the route whose nearest sample
// is closest. Embedding failures and sub-floor scores route to
// chitchat; classification never fails the request.
func (r *EmbeddingRouter) Classify(ctx context.Context, query string) string {
	ctx, span := tracer.Start(ctx, "EmbeddingRouter.Classify")
	defer span.End()

	queryVector, err := r.provider.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn(ctx, "query embedding failed, routing to chitchat", zap.Error(err))
		span.RecordError(err)
		return RouteChitchat
	}

	best := RouteChitchat
	var bestScore float32 = -1
	for i, route := range r.routes {
		for _, sample := range r.samples[i] {
			// Strict greater keeps declaration order on ties.
			if score := cosineSimilarity(queryVector, sample); score > bestScore {
				bestScore = score
				best = route.Name
			}
		}
	}

	if bestScore < r.scoreFloor {
		best = RouteChitchat
	}

	span.SetAttributes(
		attribute.String("route", best),
		attribute.Float64("score", float64(bestScore)),
	)

	return best
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either is zero-length or zero-norm.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
