// Package apiserver provides the pure JSON API server. It exposes the
// planning pipeline over /api/v1 for programmatic callers, alongside
// health endpoints, Prometheus metrics and the OpenAPI documentation.
package apiserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/http/middleware"
	"github.com/mealsmith/v2/internal/infrastructure/monitoring"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/internal/ports/outbound"
	"github.com/mealsmith/v2/pkg/healthcheck"
)

// APIServer serves the JSON API.
type APIServer struct {
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
	engine      *gin.Engine
	planner     inbound.PlannerService
	imageCache  outbound.CacheRepository
	healthCheck *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector
	openapi     *OpenAPIHandler
}

// NewAPIServer wires the JSON API against an in-process planner. The
// metrics collector may be nil.
func NewAPIServer(
	cfg *config.Config,
	logger *zap.Logger,
	planner inbound.PlannerService,
	imageCache outbound.CacheRepository,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		config:      cfg,
		logger:      logger,
		planner:     planner,
		imageCache:  imageCache,
		healthCheck: healthCheck,
		metrics:     metrics,
		openapi:     NewOpenAPIHandler(logger),
	}

	s.engine = s.setupRouter()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.APIServer.Host, cfg.APIServer.Port),
		Handler:      s.engine,
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  cfg.APIServer.IdleTimeout,
	}

	return s
}

func (s *APIServer) setupRouter() *gin.Engine {
	router := gin.New()

	mw := middleware.New(s.config, s.logger, s.metrics)

	router.Use(mw.RequestID())
	router.Use(mw.Logger())
	router.Use(mw.Recovery())
	router.Use(mw.Security())
	router.Use(mw.CORS())
	router.Use(mw.RateLimit())
	router.Use(mw.Tracing())
	if s.metrics != nil {
		router.Use(s.metrics.HTTPMiddleware())
	}
	router.Use(mw.ErrorHandler())

	router.GET(s.config.Monitoring.HealthCheckPath, s.healthCheck.Handler())
	router.GET(s.config.Monitoring.ReadinessPath, s.healthCheck.ReadinessHandler())
	router.GET(s.config.Monitoring.LivenessPath, s.healthCheck.LivenessHandler())
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	router.GET("/api/v1/openapi.yaml", gin.WrapF(s.openapi.ServeSpec))
	router.GET("/api/v1/openapi.json", gin.WrapF(s.openapi.ServeSpecMeta))
	router.GET("/api/v1/docs", gin.WrapF(s.openapi.ServeSwaggerUI))
	router.GET("/api/v1/docs/redoc", gin.WrapF(s.openapi.ServeRedocUI))

	v1 := router.Group("/api/v1")
	{
		// Plan generation can spend minutes inside the text model, so
		// the request deadline follows the write timeout rather than a
		// short API default.
		plans := v1.Group("/plans")
		plans.Use(mw.Timeout(s.config.APIServer.WriteTimeout))
		{
			plans.POST("", s.handleGeneratePlan)
			plans.POST("/preview", s.handlePreviewTargets)
			plans.POST("/grocery-csv", s.handleGroceryCSV)
		}

		v1.GET("/images/:key", s.handleImage)
	}

	return router
}

// Start begins listening. It blocks until the server stops.
func (s *APIServer) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
		zap.Bool("cors", s.config.APIServer.EnableCORS))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

// Engine exposes the router for tests.
func (s *APIServer) Engine() *gin.Engine {
	return s.engine
}
