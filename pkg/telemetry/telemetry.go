// Package telemetry wires OpenTelemetry tracing for the miner.
//
// Tracing is configured from the standard OTEL_* environment variables and
// is off unless OTEL_ENABLED=true. When off, the global no-op provider
// stays installed and StartSpan costs next to nothing.
//
//	OTEL_ENABLED                 enable tracing (default false)
//	OTEL_SERVICE_NAME            service name (default panda-miner)
//	OTEL_SERVICE_VERSION         service version (default unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT  collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL  grpc or http/protobuf (default grpc)
//	OTEL_EXPORTER_OTLP_HEADERS   k=v,k=v
//	OTEL_EXPORTER_OTLP_INSECURE  plaintext transport
//	OTEL_TRACES_SAMPLER          always_on, traceidratio, parentbased_*
//	OTEL_TRACES_SAMPLER_ARG      sampler ratio
//	OTEL_RESOURCE_ATTRIBUTES     extra resource attributes
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by this module.
const InstrumentationName = "github.com/panda-miner"

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init installs the global TracerProvider when tracing is enabled.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span on the module tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
