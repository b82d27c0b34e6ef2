package embeddings

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider with a client-side token bucket so
// bursts of requests do not trip the upstream API's rate limits.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps provider, allowing perSecond calls per second
// with a burst of one.
func NewRateLimited(provider Provider, perSecond float64) *RateLimited {
	return &RateLimited{
		inner:   provider,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (r *RateLimited) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedDocuments(ctx, texts)
}

func (r *RateLimited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedQuery(ctx, text)
}

func (r *RateLimited) Dimension() int {
	return r.inner.Dimension()
}

func (r *RateLimited) Close() error {
	return r.inner.Close()
}
