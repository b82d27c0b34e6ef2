// Package telemetry wires OpenTelemetry tracing and metrics for chatbotd.
//
// Providers export over OTLP http/protobuf. When telemetry is disabled the
// package is a no-op and the rest of the application keeps using the global
// no-op providers. Exporter failures degrade the instance instead of
// failing startup.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

// Telemetry owns the tracer and meter providers for the process.
type Telemetry struct {
	config config.TelemetryConfig

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	degraded atomic.Bool
}

// New initializes the global OTel providers from config.
//
// A disabled config returns a usable no-op instance. Exporter setup errors
// mark the instance degraded and are logged, not returned: a chatbot that
// cannot reach its collector still serves chat.
func New(ctx context.Context, cfg config.TelemetryConfig, logger *logging.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry endpoint is required when enabled")
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		t.degraded.Store(true)
		logger.Warn(ctx, "tracer provider setup failed", zap.Error(err))
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if cfg.MetricsEnabled {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			t.degraded.Store(true)
			logger.Warn(ctx, "meter provider setup failed", zap.Error(err))
		} else {
			t.meterProvider = mp
			otel.SetMeterProvider(mp)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

func newTracerProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	), nil
}

func newMeterProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(cfg.ExportInterval.Duration()),
		)),
	), nil
}

// stripScheme drops http:// or https:// prefixes. The OTLP HTTP exporters
// expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}

// Degraded reports whether any provider failed to initialize.
func (t *Telemetry) Degraded() bool {
	if t == nil {
		return false
	}
	return t.degraded.Load()
}

// Shutdown flushes pending telemetry and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
