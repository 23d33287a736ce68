// Package monitoring wires the observability stack: structured logging,
// Prometheus metrics and OpenTelemetry traces for the planning pipeline
// and its external calls.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

// TelemetryConfig holds the identity and export settings for traces
// and metrics.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TracingEnabled bool
	JaegerEndpoint string
	OTLPEndpoint   string
	SamplingRate   float64

	MetricsEnabled bool
}

// TelemetryFromConfig maps the application configuration onto telemetry
// settings.
func TelemetryFromConfig(cfg *config.Config) TelemetryConfig {
	return TelemetryConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		TracingEnabled: cfg.Monitoring.EnableTracing,
		JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
		OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
		SamplingRate:   cfg.Monitoring.SamplingRate,
		MetricsEnabled: cfg.Monitoring.EnableMetrics,
	}
}

// TelemetryProvider owns the tracer and meter providers and exposes
// span helpers for the pipeline stages.
type TelemetryProvider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *zap.Logger
	config         TelemetryConfig
}

// NewTelemetryProvider creates the provider and registers it globally.
// With tracing and metrics both disabled it stays a no-op.
func NewTelemetryProvider(cfg TelemetryConfig, logger *zap.Logger) (*TelemetryProvider, error) {
	provider := &TelemetryProvider{
		logger: logger.Named("telemetry"),
		config: cfg,
	}

	res, err := provider.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	if cfg.TracingEnabled {
		if err := provider.initTracing(res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.MetricsEnabled {
		if err := provider.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	provider.logger.Info("Telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("environment", cfg.Environment),
		zap.Bool("tracing_enabled", cfg.TracingEnabled),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	return provider, nil
}

func (t *TelemetryProvider) createResource() (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(t.config.ServiceName),
			semconv.ServiceVersion(t.config.ServiceVersion),
			semconv.DeploymentEnvironment(t.config.Environment),
		),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
	)
}

func (t *TelemetryProvider) initTracing(res *resource.Resource) error {
	var exporters []sdktrace.SpanExporter

	if t.config.JaegerEndpoint != "" {
		jaegerExporter, err := jaeger.New(
			jaeger.WithCollectorEndpoint(
				jaeger.WithEndpoint(t.config.JaegerEndpoint),
			),
		)
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		exporters = append(exporters, jaegerExporter)
		t.logger.Info("Jaeger exporter configured",
			zap.String("endpoint", t.config.JaegerEndpoint))
	}

	if t.config.OTLPEndpoint != "" {
		otlpExporter, err := newOTLPExporter(context.Background(), t.config.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporters = append(exporters, otlpExporter)
		t.logger.Info("OTLP trace exporter configured",
			zap.String("endpoint", t.config.OTLPEndpoint))
	}

	if len(exporters) == 0 {
		t.logger.Warn("Tracing enabled but no exporter endpoint configured")
		return nil
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(t.config.SamplingRate)),
	}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	t.tracerProvider = sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.tracer = t.tracerProvider.Tracer(
		t.config.ServiceName,
		trace.WithInstrumentationVersion(t.config.ServiceVersion),
	)

	return nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

func (t *TelemetryProvider) initMetrics(res *resource.Resource) error {
	// Export through the Prometheus registry so the meter shares the
	// /metrics endpoint with the collector
	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.meterProvider)

	t.meter = t.meterProvider.Meter(
		t.config.ServiceName,
		metric.WithInstrumentationVersion(t.config.ServiceVersion),
	)

	return nil
}

// Tracer returns the configured tracer, nil when tracing is off.
func (t *TelemetryProvider) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the configured meter, nil when metrics are off.
func (t *TelemetryProvider) Meter() metric.Meter {
	return t.meter
}

// StartSpan starts a span, passing through when tracing is off.
func (t *TelemetryProvider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartPlanSpan starts a span covering one stage of the planning
// pipeline.
func (t *TelemetryProvider) StartPlanSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	spanAttrs := append([]attribute.KeyValue{
		attribute.String("plan.stage", stage),
	}, attrs...)

	return t.tracer.Start(ctx, fmt.Sprintf("plan.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(spanAttrs...),
	)
}

// StartModelSpan starts a client span for a text model call.
func (t *TelemetryProvider) StartModelSpan(ctx context.Context, provider, model, operation string) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return t.tracer.Start(ctx, fmt.Sprintf("model.%s.%s", provider, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("model.provider", provider),
			attribute.String("model.name", model),
			attribute.String("model.operation", operation),
		),
	)
}

// StartImageSpan starts a client span for an image search or render.
func (t *TelemetryProvider) StartImageSpan(ctx context.Context, source, operation string) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return t.tracer.Start(ctx, fmt.Sprintf("image.%s.%s", source, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("image.source", source),
			attribute.String("image.operation", operation),
		),
	)
}

// RecordError marks the current span failed.
func (t *TelemetryProvider) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span.
func (t *TelemetryProvider) SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// InstrumentHTTPHandler wraps an inbound handler with otelhttp tracing.
func (t *TelemetryProvider) InstrumentHTTPHandler(handler http.Handler, operation string) http.Handler {
	if t.tracerProvider == nil {
		return handler
	}
	return otelhttp.NewHandler(handler, operation,
		otelhttp.WithTracerProvider(t.tracerProvider),
	)
}

// InstrumentHTTPTransport wraps an outbound round tripper so model and
// image calls carry spans and propagate trace context. A nil base uses
// the default transport.
func (t *TelemetryProvider) InstrumentHTTPTransport(base http.RoundTripper) http.RoundTripper {
	if t.tracerProvider == nil {
		if base == nil {
			return http.DefaultTransport
		}
		return base
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(t.tracerProvider),
	)
}

// Shutdown flushes and stops the providers.
func (t *TelemetryProvider) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}

	t.logger.Info("Telemetry shutdown completed")
	return nil
}

// TraceIDFromContext extracts the trace ID for log correlation.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanIDFromContext extracts the span ID for log correlation.
func SpanIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

// PipelineMetrics carries the planning counters on the OpenTelemetry
// meter so they export alongside the collector's series.
type PipelineMetrics struct {
	provider *TelemetryProvider

	plansGenerated  metric.Int64Counter
	plansIncomplete metric.Int64Counter
	planDuration    metric.Float64Histogram
	modelRequests   metric.Int64Counter
	modelDuration   metric.Float64Histogram
	imageLookups    metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments. With metrics
// disabled it returns a recorder that drops everything.
func NewPipelineMetrics(provider *TelemetryProvider) (*PipelineMetrics, error) {
	pm := &PipelineMetrics{provider: provider}
	if provider == nil || provider.meter == nil {
		return pm, nil
	}

	var err error
	meter := provider.meter

	if pm.plansGenerated, err = meter.Int64Counter(
		"mealplan.plans.generated.total",
		metric.WithDescription("Total meal plans generated"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}

	if pm.plansIncomplete, err = meter.Int64Counter(
		"mealplan.plans.incomplete.total",
		metric.WithDescription("Generated plans missing one or more days"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}

	if pm.planDuration, err = meter.Float64Histogram(
		"mealplan.plan.duration",
		metric.WithDescription("End to end plan generation time"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if pm.modelRequests, err = meter.Int64Counter(
		"mealplan.model.requests.total",
		metric.WithDescription("Text model completion requests"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}

	if pm.modelDuration, err = meter.Float64Histogram(
		"mealplan.model.duration",
		metric.WithDescription("Text model response time"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if pm.imageLookups, err = meter.Int64Counter(
		"mealplan.image.lookups.total",
		metric.WithDescription("Meal image search and render attempts"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}

	return pm, nil
}

// RecordPlanGenerated records a finished submission.
func (pm *PipelineMetrics) RecordPlanGenerated(ctx context.Context, daysDetected int, complete bool, duration time.Duration) {
	if pm.plansGenerated == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("plan.days_detected", daysDetected),
		attribute.Bool("plan.complete", complete),
	}

	pm.plansGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
	pm.planDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if !complete {
		pm.plansIncomplete.Add(ctx, 1)
	}
}

// RecordModelRequest records one completion call.
func (pm *PipelineMetrics) RecordModelRequest(ctx context.Context, provider, model string, duration time.Duration, success bool) {
	if pm.modelRequests == nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("model.provider", provider),
		attribute.String("model.name", model),
		attribute.String("model.status", status),
	}

	pm.modelRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	pm.modelDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordImageLookup records one image resolution attempt.
func (pm *PipelineMetrics) RecordImageLookup(ctx context.Context, source, outcome string) {
	if pm.imageLookups == nil {
		return
	}

	pm.imageLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("image.source", source),
		attribute.String("image.outcome", outcome),
	))
}
