package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

func testMiddlewareConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "development"},
		APIServer: config.APIServerConfig{
			EnableCORS:     true,
			AllowedOrigins: []string{"https://mealsmith.example"},
		},
		RateLimit: config.RateLimitConfig{
			Enable:         true,
			RequestsPerMin: 60,
			BurstSize:      1,
		},
		Monitoring: config.MonitoringConfig{
			HealthCheckPath: "/health",
			ReadinessPath:   "/ready",
			LivenessPath:    "/live",
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *Middleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := New(cfg, zap.NewNop(), nil)
	router := gin.New()
	return router, m
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.RequestID())
	router.GET("/", func(c *gin.Context) {
		assert.NotEmpty(t, c.GetString("request_id"))
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_EchoesInboundHeader(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestSecurity_SetsHeaders(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.Security())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.CORS())
	router.POST("/api/v1/plans", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans", nil)
	req.Header.Set("Origin", "https://mealsmith.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://mealsmith.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_BurstExhaustionReturns429(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.RateLimit())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestClientLimiter_IsolatesClients(t *testing.T) {
	limiter := newClientLimiter(config.RateLimitConfig{
		Enable:         true,
		RequestsPerMin: 60,
		BurstSize:      1,
	})

	require.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.RequestID(), m.Recovery())
	router.GET("/", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_id")
}

func TestTimeout_PropagatesDeadline(t *testing.T) {
	router, m := newTestRouter(t, testMiddlewareConfig())
	router.Use(m.Timeout(50 * time.Millisecond))
	router.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 25*time.Millisecond)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebSecurity_SetsHeaders(t *testing.T) {
	handler := WebSecurity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "img-src 'self' data: https:")
}

func TestWebRequestID_RoundTrip(t *testing.T) {
	handler := WebRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "web-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "web-42", rec.Header().Get("X-Request-ID"))
}
