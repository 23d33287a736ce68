// Package middleware provides HTTP middleware for the API and web
// servers, gin handlers for the JSON API and chi-compatible handlers
// for the frontend.
package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/monitoring"
	"github.com/mealsmith/v2/pkg/errors"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// Middleware builds the gin middleware chain for the API server.
type Middleware struct {
	config  *config.Config
	logger  *zap.Logger
	limiter *clientLimiter
	tracer  trace.Tracer
	metrics *monitoring.MetricsCollector
	origins map[string]struct{}
}

// New creates the middleware set. The metrics collector may be nil,
// in which case request metrics are skipped.
func New(cfg *config.Config, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Middleware {
	origins := make(map[string]struct{}, len(cfg.APIServer.AllowedOrigins))
	for _, origin := range cfg.APIServer.AllowedOrigins {
		origins[origin] = struct{}{}
	}

	return &Middleware{
		config:  cfg,
		logger:  logger,
		limiter: newClientLimiter(cfg.RateLimit),
		tracer:  otel.Tracer("mealsmith"),
		metrics: metrics,
		origins: origins,
	}
}

// passthrough stands in for middlewares disabled by configuration.
func passthrough(c *gin.Context) {
	c.Next()
}

// RequestID assigns each request an ID, reusing the inbound header
// when the caller already carries one.
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		// Propagate into the request context so application logs
		// correlate
		c.Request = c.Request.WithContext(
			monitoring.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// Logger writes one structured line per request. Probe endpoints are
// excluded to keep the logs readable.
func (m *Middleware) Logger() gin.HandlerFunc {
	probes := map[string]struct{}{
		m.config.Monitoring.HealthCheckPath: {},
		m.config.Monitoring.ReadinessPath:   {},
		m.config.Monitoring.LivenessPath:    {},
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, isProbe := probes[path]; isProbe {
			return
		}

		if query := c.Request.URL.RawQuery; query != "" {
			path += "?" + query
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("error", errs))
		}

		switch {
		case status >= http.StatusInternalServerError:
			m.logger.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			m.logger.Warn("Client error", fields...)
		default:
			m.logger.Info("Request completed", fields...)
		}
	}
}

// Recovery converts panics into 500 responses.
func (m *Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			m.logger.Error("Panic recovered",
				zap.String("request_id", c.GetString(ctxRequestID)),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))

			if m.metrics != nil {
				m.metrics.RecordError("http", "panic")
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": c.GetString(ctxRequestID),
			})
		}()

		c.Next()
	}
}

// CORS answers preflights and marks allowed origins.
func (m *Middleware) CORS() gin.HandlerFunc {
	if !m.config.APIServer.EnableCORS {
		return passthrough
	}

	return func(c *gin.Context) {
		if origin := c.Request.Header.Get("Origin"); m.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit rejects clients that exceed their per-IP budget.
func (m *Middleware) RateLimit() gin.HandlerFunc {
	if !m.config.RateLimit.Enable {
		return passthrough
	}

	return func(c *gin.Context) {
		if m.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Rate limit exceeded",
			"retry_after": "60",
		})
	}
}

// Tracing opens a server span per request.
func (m *Middleware) Tracing() gin.HandlerFunc {
	if !m.config.Monitoring.EnableTracing {
		return passthrough
	}

	return func(c *gin.Context) {
		ctx, span := m.tracer.Start(c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.url", c.Request.URL.String()),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("request.id", c.GetString(ctxRequestID)),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}

var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

// Security sets the browser hardening headers. HSTS only goes out in
// production where TLS termination is guaranteed.
func (m *Middleware) Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		for name, value := range securityHeaders {
			c.Header(name, value)
		}
		if m.config.IsProduction() {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Header("Server", "")

		c.Next()
	}
}

// Timeout bounds the request context. Handlers and their outbound
// calls observe the deadline through context cancellation.
func (m *Middleware) Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ErrorHandler renders the last attached error as the standard JSON
// envelope. Errors without an application code are reported as
// internal.
func (m *Middleware) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()

		var appErr *errors.AppError
		if !stderrors.As(last.Err, &appErr) {
			appErr = errors.NewAppError(errors.CodeInternal, "An unexpected error occurred", last.Error())
		}

		requestID := c.GetString(ctxRequestID)
		m.logger.Error("Request error",
			zap.String("request_id", requestID),
			zap.String("code", string(appErr.Code)),
			zap.String("message", appErr.Message),
			zap.String("details", appErr.Details))

		if m.metrics != nil {
			m.metrics.RecordError("http", string(appErr.Code))
		}

		c.JSON(appErr.StatusCode(), errors.ToErrorResponse(appErr, requestID))
	}
}

// originAllowed reports whether origin may use the API cross-origin.
// Development allows any origin; otherwise the configured list rules,
// with "*" as an explicit opt-in for all.
func (m *Middleware) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if m.config.IsDevelopment() {
		return true
	}
	if _, ok := m.origins["*"]; ok {
		return true
	}
	_, ok := m.origins[origin]
	return ok
}
