package router

import (
	"context"
	"fmt"
	"strings"
)

// KeywordRouter classifies by substring match against a small fixed
// product vocabulary. No network call; used as the fast pre-filter
// strategy.
type KeywordRouter struct {
	keywords []string
}

// NewKeywordRouter creates a keyword router. Keywords are matched
// case-insensitively as substrings, so multi-word Vietnamese terms
// like "điện thoại" work.
func NewKeywordRouter(keywords []string) (*KeywordRouter, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: keyword strategy needs a vocabulary", ErrInvalidConfig)
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	return &KeywordRouter{keywords: lowered}, nil
}

// Classify returns RouteProducts when any vocabulary term occurs in
// the query, otherwise RouteChitchat.
func (r *KeywordRouter) Classify(ctx context.Context, query string) string {
	_, span := tracer.Start(ctx, "KeywordRouter.Classify")
	defer span.End()

	lowered := strings.ToLower(query)
	for _, kw := range r.keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return RouteProducts
		}
	}
	return RouteChitchat
}
