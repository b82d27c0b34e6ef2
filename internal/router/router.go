// Package router classifies queries into intent routes that decide
// whether retrieval runs.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/embeddings"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

var tracer = otel.Tracer("chatbotd.router")

// Route names. RouteChitchat is the fallback for anything that cannot
// be classified; classification never fails a request.
const (
	RouteProducts = "products"
	RouteChitchat = "chitchat"
)

// ErrInvalidConfig indicates invalid router configuration.
var ErrInvalidConfig = errors.New("invalid router configuration")

// Route is a named intent with example utterances for nearest-neighbor
// classification. Static configuration, loaded once.
type Route struct {
	Name    string
	Samples []string
}

// Router assigns a route name to a query.
type Router interface {
	Classify(ctx context.Context, query string) string
}

// New creates a router from the configuration. The embedding strategy
// pre-embeds all route samples up front so a bad embedding setup
// surfaces at startup, not per request.
func New(ctx context.Context, cfg config.RouterConfig, provider embeddings.Provider, logger *logging.Logger) (Router, error) {
	switch cfg.Strategy {
	case "keyword", "":
		return NewKeywordRouter(cfg.Keywords)
	case "embedding":
		return NewEmbeddingRouter(ctx, DefaultRoutes(), provider, cfg.ScoreFloor, logger)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
}

// DefaultRoutes returns the built-in intents for the Vietnamese
// phone-and-laptop catalog.
func DefaultRoutes() []Route {
	return []Route{
		{
			Name: RouteProducts,
			Samples: []string{
				"giá iphone 15 là bao nhiêu",
				"điện thoại samsung nào đang giảm giá",
				"cho tôi xem các mẫu laptop dell",
				"máy tính xách tay nào phù hợp cho sinh viên",
				"so sánh iphone 14 và iphone 15",
				"máy ảnh canon còn hàng không",
				"tai nghe bluetooth nào tốt",
				"shop có bán macbook air không",
				"cấu hình của galaxy s24 thế nào",
				"điện thoại nào pin trâu dưới 10 triệu",
			},
		},
		{
			Name: RouteChitchat,
			Samples: []string{
				"hôm nay trời đẹp quá",
				"bạn tên là gì",
				"kể cho tôi một câu chuyện cười",
				"bạn có khỏe không",
				"cảm ơn bạn nhiều",
				"chào buổi sáng",
				"bạn nghĩ gì về thời tiết hôm nay",
				"tạm biệt nhé",
			},
		},
	}
}
