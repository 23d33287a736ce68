package monitoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/internal/ports/outbound"
)

// Decorators that record metrics, spans and event logs around the
// planning ports. Every sink is optional; a nil collector, telemetry
// provider, pipeline recorder or event logger turns the corresponding
// recording off without touching the wrapped call.

// InstrumentedPlannerService wraps the planner use cases with plan
// level metrics and spans.
type InstrumentedPlannerService struct {
	inner     inbound.PlannerService
	collector *MetricsCollector
	telemetry *TelemetryProvider
	pipeline  *PipelineMetrics
	events    *Logger
}

var _ inbound.PlannerService = (*InstrumentedPlannerService)(nil)

// InstrumentPlanner wraps a planner service with observability.
func InstrumentPlanner(
	inner inbound.PlannerService,
	collector *MetricsCollector,
	telemetry *TelemetryProvider,
	pipeline *PipelineMetrics,
	events *Logger,
) inbound.PlannerService {
	return &InstrumentedPlannerService{
		inner:     inner,
		collector: collector,
		telemetry: telemetry,
		pipeline:  pipeline,
		events:    events,
	}
}

// GeneratePlan runs the wrapped pipeline inside a plan span and records
// the outcome.
func (s *InstrumentedPlannerService) GeneratePlan(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.MealPlanDTO, error) {
	ctx, span := startSpan(s.telemetry, ctx, func(t *TelemetryProvider) (context.Context, trace.Span) {
		return t.StartPlanSpan(ctx, "generate",
			attribute.String("plan.goal", cmd.Goal),
			attribute.String("plan.activity_level", cmd.ActivityLevel),
		)
	})
	defer span.End()

	start := time.Now()
	dto, err := s.inner.GeneratePlan(ctx, cmd)
	duration := time.Since(start)

	if err != nil {
		if s.collector != nil {
			s.collector.PlanGenerated("error", duration)
			s.collector.RecordError("planner", "generation")
		}
		if s.telemetry != nil {
			s.telemetry.RecordError(ctx, err)
		}
		if s.events != nil {
			s.events.PlanEvent(ctx, "generation_failed", "",
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return nil, err
	}

	complete := dto.Warning == ""
	if s.collector != nil {
		s.collector.PlanGenerated("success", duration)
		if !complete {
			s.collector.PlanIncomplete()
		}
	}
	if s.pipeline != nil {
		s.pipeline.RecordPlanGenerated(ctx, dto.DaysDetected, complete, duration)
	}
	if s.events != nil {
		s.events.PlanEvent(ctx, "generated", dto.ID,
			zap.Int("days_detected", dto.DaysDetected),
			zap.Bool("complete", complete),
			zap.Duration("duration", duration),
		)
	}
	span.SetAttributes(
		attribute.Int("plan.days_detected", dto.DaysDetected),
		attribute.Bool("plan.complete", complete),
		attribute.Int("plan.grocery_items", len(dto.GroceryItems)),
	)

	return dto, nil
}

// PreviewTargets counts previews; the calculation is pure and fast, so
// no span is opened.
func (s *InstrumentedPlannerService) PreviewTargets(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.TargetsDTO, error) {
	dto, err := s.inner.PreviewTargets(ctx, cmd)
	if err == nil && s.collector != nil {
		s.collector.TargetsPreviewed()
	}
	return dto, err
}

// GroceryCSV counts exports.
func (s *InstrumentedPlannerService) GroceryCSV(items []inbound.GroceryItemDTO) ([]byte, error) {
	data, err := s.inner.GroceryCSV(items)
	if err == nil && s.collector != nil {
		s.collector.GroceryExported()
	}
	return data, err
}

// InstrumentedTextGenerator wraps a text generator with model request
// metrics and client spans. It sits under the completion cache so only
// real provider calls are measured.
type InstrumentedTextGenerator struct {
	inner     outbound.TextGenerator
	provider  string
	model     string
	collector *MetricsCollector
	telemetry *TelemetryProvider
	pipeline  *PipelineMetrics
	events    *Logger
}

var _ outbound.TextGenerator = (*InstrumentedTextGenerator)(nil)

// InstrumentTextGenerator wraps a text generator with observability.
func InstrumentTextGenerator(
	inner outbound.TextGenerator,
	provider, model string,
	collector *MetricsCollector,
	telemetry *TelemetryProvider,
	pipeline *PipelineMetrics,
	events *Logger,
) outbound.TextGenerator {
	return &InstrumentedTextGenerator{
		inner:     inner,
		provider:  provider,
		model:     model,
		collector: collector,
		telemetry: telemetry,
		pipeline:  pipeline,
		events:    events,
	}
}

// Generate forwards the completion call and records its duration and
// status.
func (g *InstrumentedTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := startSpan(g.telemetry, ctx, func(t *TelemetryProvider) (context.Context, trace.Span) {
		return t.StartModelSpan(ctx, g.provider, g.model, "generate")
	})
	defer span.End()

	start := time.Now()
	completion, err := g.inner.Generate(ctx, prompt)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if g.telemetry != nil {
			g.telemetry.RecordError(ctx, err)
		}
	}
	if g.collector != nil {
		g.collector.ModelRequest(g.provider, g.model, status, duration)
	}
	if g.pipeline != nil {
		g.pipeline.RecordModelRequest(ctx, g.provider, g.model, duration, err == nil)
	}
	if g.events != nil {
		g.events.ModelRequest(ctx, g.provider, g.model, "generate", duration, err)
	}

	return completion, err
}

// InstrumentedImageSearcher wraps an image searcher with lookup metrics
// and client spans.
type InstrumentedImageSearcher struct {
	inner     outbound.ImageSearcher
	source    string
	collector *MetricsCollector
	telemetry *TelemetryProvider
	pipeline  *PipelineMetrics
	events    *Logger
}

var _ outbound.ImageSearcher = (*InstrumentedImageSearcher)(nil)

// InstrumentImageSearcher wraps an image searcher with observability.
func InstrumentImageSearcher(
	inner outbound.ImageSearcher,
	source string,
	collector *MetricsCollector,
	telemetry *TelemetryProvider,
	pipeline *PipelineMetrics,
	events *Logger,
) outbound.ImageSearcher {
	return &InstrumentedImageSearcher{
		inner:     inner,
		source:    source,
		collector: collector,
		telemetry: telemetry,
		pipeline:  pipeline,
		events:    events,
	}
}

// Search forwards the lookup and records hit, miss or error.
func (s *InstrumentedImageSearcher) Search(ctx context.Context, query string) (string, error) {
	ctx, span := startSpan(s.telemetry, ctx, func(t *TelemetryProvider) (context.Context, trace.Span) {
		return t.StartImageSpan(ctx, s.source, "search")
	})
	defer span.End()

	start := time.Now()
	url, err := s.inner.Search(ctx, query)
	duration := time.Since(start)

	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
		if s.telemetry != nil {
			s.telemetry.RecordError(ctx, err)
		}
	case url == "":
		outcome = "miss"
	}
	s.record(ctx, outcome, duration)
	span.SetAttributes(attribute.String("image.outcome", outcome))

	return url, err
}

func (s *InstrumentedImageSearcher) record(ctx context.Context, outcome string, duration time.Duration) {
	if s.collector != nil {
		s.collector.ImageLookup(s.source, outcome)
	}
	if s.pipeline != nil {
		s.pipeline.RecordImageLookup(ctx, s.source, outcome)
	}
	if s.events != nil {
		s.events.ImageLookup(ctx, s.source, outcome, duration)
	}
}

// InstrumentedImageGenerator wraps an image generator with render
// metrics and client spans.
type InstrumentedImageGenerator struct {
	inner     outbound.ImageGenerator
	source    string
	collector *MetricsCollector
	telemetry *TelemetryProvider
	pipeline  *PipelineMetrics
	events    *Logger
}

var _ outbound.ImageGenerator = (*InstrumentedImageGenerator)(nil)

// InstrumentImageGenerator wraps an image generator with observability.
func InstrumentImageGenerator(
	inner outbound.ImageGenerator,
	source string,
	collector *MetricsCollector,
	telemetry *TelemetryProvider,
	pipeline *PipelineMetrics,
	events *Logger,
) outbound.ImageGenerator {
	return &InstrumentedImageGenerator{
		inner:     inner,
		source:    source,
		collector: collector,
		telemetry: telemetry,
		pipeline:  pipeline,
		events:    events,
	}
}

// Generate forwards the render and records generated or error.
func (g *InstrumentedImageGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	ctx, span := startSpan(g.telemetry, ctx, func(t *TelemetryProvider) (context.Context, trace.Span) {
		return t.StartImageSpan(ctx, g.source, "generate")
	})
	defer span.End()

	start := time.Now()
	data, err := g.inner.Generate(ctx, prompt)
	duration := time.Since(start)

	outcome := "generated"
	if err != nil || len(data) == 0 {
		outcome = "error"
		if err != nil && g.telemetry != nil {
			g.telemetry.RecordError(ctx, err)
		}
	}
	if g.collector != nil {
		g.collector.ImageLookup(g.source, outcome)
	}
	if g.pipeline != nil {
		g.pipeline.RecordImageLookup(ctx, g.source, outcome)
	}
	if g.events != nil {
		g.events.ImageLookup(ctx, g.source, outcome, duration)
	}
	span.SetAttributes(
		attribute.String("image.outcome", outcome),
		attribute.Int("image.bytes", len(data)),
	)

	return data, err
}

// startSpan opens a span through the provider when one is configured
// and falls back to the span already on the context otherwise.
func startSpan(t *TelemetryProvider, ctx context.Context, open func(*TelemetryProvider) (context.Context, trace.Span)) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return open(t)
}
