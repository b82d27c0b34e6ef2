package http

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

const instrumentationName = "github.com/tungtran1995/chatbot-server-test/internal/http"

// Metrics holds the HTTP request instruments.
type Metrics struct {
	requestsTotal metric.Int64Counter
	requestDur    metric.Float64Histogram
}

// NewMetrics registers the HTTP instruments on the global meter.
func NewMetrics(logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"chatbotd.http.requests_total",
		metric.WithDescription("Total HTTP requests by method, path and status."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(context.Background(), "creating requests counter failed", zap.Error(err))
	}

	m.requestDur, err = meter.Float64Histogram(
		"chatbotd.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds by method, path and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn(context.Background(), "creating duration histogram failed", zap.Error(err))
	}

	return m
}

// Record counts one request.
func (m *Metrics) Record(ctx context.Context, method, path string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", strconv.Itoa(status)),
	)
	if m.requestsTotal != nil {
		m.requestsTotal.Add(ctx, 1, attrs)
	}
	if m.requestDur != nil {
		m.requestDur.Record(ctx, duration.Seconds(), attrs)
	}
}
