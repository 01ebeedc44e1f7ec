package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// AnalysisTracer provides distributed tracing for rollout analyses
type AnalysisTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider creates a new OpenTelemetry tracer provider exporting
// over OTLP/gRPC and installs it globally.
func NewTracerProvider(ctx context.Context, serviceName, serviceVersion, otlpEndpoint string, sampleRatio float64) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("mirador"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewAnalysisTracer uses the global provider, which is a no-op until
// NewTracerProvider installs a real one.
func NewAnalysisTracer(serviceName string) *AnalysisTracer {
	return &AnalysisTracer{tracer: otel.Tracer(serviceName)}
}

// StartAnalysisSpan starts a span for one analyzer call
func (at *AnalysisTracer) StartAnalysisSpan(ctx context.Context, analyzer string, ref models.FlagRef) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "rollout_analysis",
		trace.WithAttributes(
			attribute.String("analysis.analyzer", analyzer),
			attribute.String("flag.project", ref.ProjectKey),
			attribute.String("flag.environment", ref.Environment),
			attribute.String("flag.key", ref.FeatureFlagKey),
			attribute.String("component", "rollout-engine"),
		),
	)
}

// StartSourceSpan starts a span for a metrics source read
func (at *AnalysisTracer) StartSourceSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "metrics_source_read",
		trace.WithAttributes(
			attribute.String("source.name", source),
			attribute.String("component", "metrics-source"),
		),
	)
}

// StartCacheOperationSpan starts a span for cache operations
func (at *AnalysisTracer) StartCacheOperationSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "cache_operation",
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
			attribute.String("component", "cache"),
		),
	)
}

// RecordAnalysisResult records the outcome of an analysis on its span
func (at *AnalysisTracer) RecordAnalysisResult(span trace.Span, duration time.Duration, outcome string) {
	span.SetAttributes(
		attribute.Int64("analysis.duration_ms", duration.Milliseconds()),
		attribute.String("analysis.outcome", outcome),
	)
	if outcome == "degraded" {
		span.SetStatus(codes.Error, "analysis degraded")
	}
}

// RecordCacheResult records cache hit/miss on a span
func (at *AnalysisTracer) RecordCacheResult(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}

// RecordError records an error on a span
func (at *AnalysisTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
