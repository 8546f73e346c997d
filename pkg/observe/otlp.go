package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// OTLPConfig configures the OTLP trace exporter bootstrap. Most users
// only need ServiceName and Endpoint.
type OTLPConfig struct {
	// ServiceName identifies the process in traces.
	ServiceName string

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string

	// SampleRate is the fraction of runs to record; 1.0 records all, and
	// so does any value outside (0, 1), including 0.
	SampleRate float64

	// BatchTimeout is how long spans buffer before export.
	BatchTimeout time.Duration
}

// DefaultOTLPConfig returns the default exporter configuration.
func DefaultOTLPConfig(serviceName, endpoint string) OTLPConfig {
	return OTLPConfig{
		ServiceName:  serviceName,
		Endpoint:     endpoint,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// InitOTLP installs a global tracer provider exporting to an OTLP
// collector over gRPC (insecure, for collectors inside the same
// network) and returns its shutdown function. After this, a plain
// NewTracing(nil) observer exports run and task spans.
func InitOTLP(ctx context.Context, cfg OTLPConfig) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}
	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
