package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logger decorates the application logger with correlation fields and
// typed pipeline events. The instrumentation decorators log through it
// so every model call and plan outcome lands in the logs with its
// trace attached.
type Logger struct {
	base *zap.Logger
}

// NewEventLogger wraps the application logger for pipeline event
// logging.
func NewEventLogger(base *zap.Logger) *Logger {
	return &Logger{base: base.Named("events")}
}

// WithContext returns the logger with every correlation field the
// context carries.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	fields := correlationFields(ctx)
	if len(fields) == 0 {
		return l.base
	}
	return l.base.With(fields...)
}

func correlationFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if spanID := SpanIDFromContext(ctx); spanID != "" {
		fields = append(fields, zap.String("span_id", spanID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return fields
}

// ModelRequest logs one text model round trip.
func (l *Logger) ModelRequest(ctx context.Context, provider, model, operation string, duration time.Duration, err error) {
	logger := l.WithContext(ctx).With(
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Duration("duration", duration),
	)

	if err != nil {
		logger.Error("Model request failed", zap.Error(err))
		return
	}
	logger.Info("Model request completed")
}

// ImageLookup logs one image provider round trip.
func (l *Logger) ImageLookup(ctx context.Context, source, outcome string, duration time.Duration) {
	l.WithContext(ctx).Debug("Image lookup completed",
		zap.String("source", source),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	)
}

// PlanEvent logs a planning pipeline event.
func (l *Logger) PlanEvent(ctx context.Context, event, planID string, fields ...zap.Field) {
	l.WithContext(ctx).Info("Plan event",
		append([]zap.Field{
			zap.String("event", event),
			zap.String("plan_id", planID),
		}, fields...)...,
	)
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext extracts the request ID for log correlation.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
