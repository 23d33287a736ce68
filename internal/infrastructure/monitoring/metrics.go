package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector owns every Prometheus series the service exports.
// Construct it once per process; the series register against the
// default registry.
type MetricsCollector struct {
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Planning metrics
	plansGeneratedTotal   *prometheus.CounterVec
	planDuration          prometheus.Histogram
	incompletePlansTotal  prometheus.Counter
	targetsPreviewedTotal prometheus.Counter
	groceryExportsTotal   prometheus.Counter
	modelRequestsTotal    *prometheus.CounterVec
	modelRequestDuration  *prometheus.HistogramVec
	imageLookupsTotal     *prometheus.CounterVec

	// System metrics
	cacheHitRatio   *prometheus.GaugeVec
	cacheOperations *prometheus.CounterVec
	activeSessions  prometheus.Gauge

	// SLA/SLO metrics
	uptimeSeconds  prometheus.Counter
	errorRateTotal *prometheus.CounterVec
}

// NewMetricsCollector registers all series and returns the collector.
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	httpLabels := []string{"method", "path", "status_code"}

	return &MetricsCollector{
		logger: logger,

		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		}, httpLabels),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, httpLabels),
		httpResponseSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP response bodies",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, httpLabels),

		plansGeneratedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_plans_generated_total",
			Help: "Meal plan generations by outcome",
		}, []string{"status"}),
		planDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meal_plan_generation_duration_seconds",
			Help:    "End to end plan generation latency",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		incompletePlansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meal_plans_incomplete_total",
			Help: "Generated plans covering fewer than seven days",
		}),
		targetsPreviewedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nutrition_targets_previewed_total",
			Help: "Target previews served without a model call",
		}),
		groceryExportsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grocery_exports_total",
			Help: "Grocery list CSV downloads",
		}),
		modelRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "model_requests_total",
			Help: "Text model calls by provider and outcome",
		}, []string{"provider", "model", "status"}),
		modelRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_request_duration_seconds",
			Help:    "Latency of text model calls",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}, []string{"provider", "model"}),
		imageLookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meal_image_lookups_total",
			Help: "Meal image search and render attempts",
		}, []string{"source", "outcome"}),

		cacheHitRatio: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Fraction of cache reads answered from the tier",
		}, []string{"cache_type"}),
		cacheOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache commands by operation and outcome",
		}, []string{"operation", "cache_type", "status"}),
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "planning_sessions_active",
			Help: "Planning sessions currently alive",
		}),

		uptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "uptime_seconds_total",
			Help: "Seconds since process start",
		}),
		errorRateTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "error_rate_total",
			Help: "Errors by originating service",
		}, []string{"service", "error_type"}),
	}
}

// observeHTTP records one served request. Both server middlewares
// feed through here so the series agree on labels.
func (m *MetricsCollector) observeHTTP(method, path string, status, bytes int, started time.Time) {
	code := strconv.Itoa(status)

	m.httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, code).Observe(time.Since(started).Seconds())
	m.httpResponseSize.WithLabelValues(method, path, code).Observe(float64(bytes))

	switch {
	case status >= http.StatusInternalServerError:
		m.errorRateTotal.WithLabelValues("http", "server_error").Inc()
	case status >= http.StatusBadRequest:
		m.errorRateTotal.WithLabelValues("http", "client_error").Inc()
	}
}

// HTTPMiddleware records request metrics on the gin server. Routes are
// labeled by pattern, not raw path, to keep cardinality bounded.
func (m *MetricsCollector) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		m.observeHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), c.Writer.Size(), start)
	}
}

// Middleware records request metrics on the chi server. The route
// pattern is read after serving so parameterized paths keep bounded
// cardinality.
func (m *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.observeHTTP(r.Method, path, ww.Status(), ww.BytesWritten(), start)
	})
}

// Planning metric methods

func (m *MetricsCollector) PlanGenerated(status string, duration time.Duration) {
	m.plansGeneratedTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.planDuration.Observe(duration.Seconds())
	}
}

func (m *MetricsCollector) PlanIncomplete() {
	m.incompletePlansTotal.Inc()
}

func (m *MetricsCollector) TargetsPreviewed() {
	m.targetsPreviewedTotal.Inc()
}

func (m *MetricsCollector) GroceryExported() {
	m.groceryExportsTotal.Inc()
}

func (m *MetricsCollector) ModelRequest(provider, model, status string, duration time.Duration) {
	m.modelRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.modelRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (m *MetricsCollector) ImageLookup(source, outcome string) {
	m.imageLookupsTotal.WithLabelValues(source, outcome).Inc()
}

// System metric methods

func (m *MetricsCollector) CacheOperation(operation, cacheType, status string) {
	m.cacheOperations.WithLabelValues(operation, cacheType, status).Inc()
}

func (m *MetricsCollector) UpdateCacheHitRatio(cacheType string, ratio float64) {
	m.cacheHitRatio.WithLabelValues(cacheType).Set(ratio)
}

func (m *MetricsCollector) SessionStarted() {
	m.activeSessions.Inc()
}

func (m *MetricsCollector) SessionEnded() {
	m.activeSessions.Dec()
}

func (m *MetricsCollector) RecordError(service, errorType string) {
	m.errorRateTotal.WithLabelValues(service, errorType).Inc()
}

// StartUptimeCounter ticks the uptime series until ctx ends.
func (m *MetricsCollector) StartUptimeCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.uptimeSeconds.Inc()
		}
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}
