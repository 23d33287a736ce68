// Package container wires the application together with Uber Fx.
// Providers are grouped into named modules so each binary assembles
// only the graph it serves: the JSON API and the HTMX frontend share
// the core pipeline but mount different servers on top of it.
package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/application/planner"
	"github.com/mealsmith/v2/internal/domain/nutrition"
	"github.com/mealsmith/v2/internal/infrastructure/ai"
	"github.com/mealsmith/v2/internal/infrastructure/ai/gemini"
	"github.com/mealsmith/v2/internal/infrastructure/ai/ollama"
	"github.com/mealsmith/v2/internal/infrastructure/ai/openai"
	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/hotreload"
	"github.com/mealsmith/v2/internal/infrastructure/http/apiserver"
	"github.com/mealsmith/v2/internal/infrastructure/http/webserver"
	"github.com/mealsmith/v2/internal/infrastructure/images"
	"github.com/mealsmith/v2/internal/infrastructure/images/huggingface"
	"github.com/mealsmith/v2/internal/infrastructure/images/pexels"
	"github.com/mealsmith/v2/internal/infrastructure/monitoring"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/internal/ports/outbound"
	"github.com/mealsmith/v2/pkg/healthcheck"
	"github.com/mealsmith/v2/pkg/logger"
)

// ConfigModule loads configuration from files and the environment.
var ConfigModule = fx.Options(
	fx.Provide(ProvideConfig),
)

// LoggerModule builds the application logger.
var LoggerModule = fx.Options(
	fx.Provide(ProvideLogger),
)

// MonitoringModule provides telemetry, Prometheus metrics, and the
// OpenTelemetry pipeline instruments.
var MonitoringModule = fx.Options(
	fx.Provide(ProvideTelemetry),
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvidePipelineMetrics),
	fx.Provide(ProvideEventLogger),
)

// CacheModule provides the two-tier cache, the cache port, and the
// session store built on top of it.
var CacheModule = fx.Options(
	fx.Provide(ProvideRedisClient),
	fx.Provide(ProvideCacheService),
	fx.Provide(ProvideCacheRepository),
	fx.Provide(ProvideSessionStore),
)

// AIModule provides the text generation chain: provider client,
// instrumentation, then the response cache when enabled.
var AIModule = fx.Options(
	fx.Provide(ProvideModelClient),
	fx.Provide(ProvideTextGenerator),
)

// ImageModule provides the optional meal image pipeline.
var ImageModule = fx.Options(
	fx.Provide(ProvideImagePipeline),
	fx.Provide(ProvideImageResolver),
)

// PlannerModule provides the nutrition calculator and the planning
// service behind the inbound port.
var PlannerModule = fx.Options(
	fx.Provide(ProvideCalculator),
	fx.Provide(ProvidePlannerService),
)

// HealthModule provides the health registry with its component checks.
var HealthModule = fx.Options(
	fx.Provide(ProvideHealthCheck),
)

// CoreModule assembles everything both binaries share.
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	CacheModule,
	AIModule,
	ImageModule,
	PlannerModule,
	HealthModule,
	fx.Invoke(RegisterLifecycleHooks),
)

// APIModule assembles the JSON API binary.
var APIModule = fx.Options(
	CoreModule,
	fx.Provide(apiserver.NewAPIServer),
	fx.Invoke(RegisterAPIServer),
)

// WebModule assembles the HTMX frontend binary.
var WebModule = fx.Options(
	CoreModule,
	fx.Provide(ProvideLiveReload),
	fx.Provide(webserver.NewWebServer),
	fx.Invoke(RegisterWebServer),
)

// ProvideConfig loads the configuration.
func ProvideConfig() (*config.Config, error) {
	return config.Load("")
}

// ProvideLogger builds the zap logger from app settings.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Development: cfg.App.Debug,
	})
}

// ProvideTelemetry builds the tracing and metrics provider. It stays a
// no-op when both are disabled.
func ProvideTelemetry(cfg *config.Config, log *zap.Logger) (*monitoring.TelemetryProvider, error) {
	return monitoring.NewTelemetryProvider(monitoring.TelemetryFromConfig(cfg), log)
}

// ProvideMetrics builds the Prometheus collector, or nil when metrics
// are disabled. Consumers treat a nil collector as off.
func ProvideMetrics(cfg *config.Config, log *zap.Logger) *monitoring.MetricsCollector {
	if !cfg.Monitoring.EnableMetrics {
		return nil
	}
	return monitoring.NewMetricsCollector(log)
}

// ProvidePipelineMetrics builds the OpenTelemetry pipeline instruments.
func ProvidePipelineMetrics(provider *monitoring.TelemetryProvider) (*monitoring.PipelineMetrics, error) {
	return monitoring.NewPipelineMetrics(provider)
}

// ProvideEventLogger wraps the application logger for trace-correlated
// pipeline events.
func ProvideEventLogger(log *zap.Logger) *monitoring.Logger {
	return monitoring.NewEventLogger(log)
}

// ProvideRedisClient connects to Redis when enabled. A connection
// failure logs and degrades to the in-process tier instead of
// blocking boot.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) *cache.RedisClient {
	if !cfg.Redis.Enable {
		return nil
	}
	client, err := cache.NewRedisClient(&cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, caching stays in-process",
			zap.String("addr", cfg.RedisAddr()),
			zap.Error(err))
		return nil
	}
	return client
}

// ProvideCacheService builds the two-tier cache over the optional
// Redis client.
func ProvideCacheService(redis *cache.RedisClient, log *zap.Logger) *cache.Service {
	return cache.NewService(redis, log)
}

// ProvideCacheRepository exposes the cache service through the
// outbound port.
func ProvideCacheRepository(svc *cache.Service) outbound.CacheRepository {
	return svc
}

// ProvideSessionStore builds the plan session store.
func ProvideSessionStore(cfg *config.Config, svc *cache.Service, log *zap.Logger) *cache.SessionStore {
	return cache.NewSessionStore(svc, cfg.Session, log)
}

// ModelClient is what every text provider exposes: the generation port
// plus a probe for the health registry.
type ModelClient interface {
	outbound.TextGenerator
	HealthCheck(ctx context.Context) error
}

// ProvideModelClient builds the configured provider's client with an
// instrumented HTTP transport so outbound calls carry trace context.
func ProvideModelClient(cfg *config.Config, log *zap.Logger, telemetry *monitoring.TelemetryProvider) (ModelClient, error) {
	httpClient := &http.Client{
		Timeout:   time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		Transport: telemetry.InstrumentHTTPTransport(nil),
	}

	switch cfg.AI.Provider {
	case config.AIProviderGemini:
		return gemini.NewClient(cfg.AI, httpClient, log), nil
	case config.AIProviderOpenAI:
		return openai.NewClient(cfg.AI, httpClient, log), nil
	case config.AIProviderOllama:
		return ollama.NewClient(cfg.AI, httpClient, log), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
}

// ProvideTextGenerator decorates the model client with observability
// and, when enabled, the prompt response cache. The cache sits
// outermost so hits skip the model call without counting as requests.
func ProvideTextGenerator(
	cfg *config.Config,
	log *zap.Logger,
	client ModelClient,
	cacheRepo outbound.CacheRepository,
	collector *monitoring.MetricsCollector,
	telemetry *monitoring.TelemetryProvider,
	pipeline *monitoring.PipelineMetrics,
	events *monitoring.Logger,
) outbound.TextGenerator {
	var gen outbound.TextGenerator = client
	gen = monitoring.InstrumentTextGenerator(gen, cfg.AI.Provider, cfg.AI.Model, collector, telemetry, pipeline, events)
	if cfg.AI.EnableCache {
		gen = ai.NewCachedTextGenerator(gen, cacheRepo, cfg.AI, log)
	}
	return gen
}

// ImagePipeline carries whichever image provider the resolved strategy
// selected, plus its breaker for health reporting. All fields stay nil
// when images are off.
type ImagePipeline struct {
	Strategy  string
	Searcher  outbound.ImageSearcher
	Generator outbound.ImageGenerator
	Breaker   *healthcheck.Breaker
}

// ProvideImagePipeline builds the provider chain for the resolved
// strategy: client, circuit breaker, then instrumentation outermost so
// breaker rejections still show up as lookup errors.
func ProvideImagePipeline(
	cfg *config.Config,
	log *zap.Logger,
	collector *monitoring.MetricsCollector,
	telemetry *monitoring.TelemetryProvider,
	pipeline *monitoring.PipelineMetrics,
	events *monitoring.Logger,
) *ImagePipeline {
	p := &ImagePipeline{Strategy: cfg.ResolveImageStrategy()}
	if p.Strategy == config.ImageStrategyOff {
		log.Info("Meal images disabled, plans render without them")
		return p
	}

	httpClient := &http.Client{
		Timeout:   cfg.Images.Timeout,
		Transport: telemetry.InstrumentHTTPTransport(nil),
	}

	switch p.Strategy {
	case config.ImageStrategySearch:
		p.Breaker = newProviderBreaker("pexels", log)
		guarded := images.GuardSearcher(pexels.NewClient(cfg.Images, httpClient, log), p.Breaker)
		p.Searcher = monitoring.InstrumentImageSearcher(guarded, "pexels", collector, telemetry, pipeline, events)
	case config.ImageStrategyGenerate:
		p.Breaker = newProviderBreaker("huggingface", log)
		guarded := images.GuardGenerator(huggingface.NewClient(cfg.Images, httpClient, log), p.Breaker)
		p.Generator = monitoring.InstrumentImageGenerator(guarded, "huggingface", collector, telemetry, pipeline, events)
	}
	return p
}

func newProviderBreaker(provider string, log *zap.Logger) *healthcheck.Breaker {
	bc := healthcheck.DefaultBreakerConfig()
	bc.OnStateChange = func(name string, from, to healthcheck.BreakerState) {
		log.Warn("Image provider circuit changed state",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	return healthcheck.NewBreaker(provider, bc)
}

// ProvideImageResolver builds the resolver over the configured
// provider and the shared cache.
func ProvideImageResolver(
	cfg *config.Config,
	p *ImagePipeline,
	cacheRepo outbound.CacheRepository,
	log *zap.Logger,
) *planner.ImageResolver {
	return planner.NewImageResolver(p.Strategy, p.Searcher, p.Generator, cacheRepo, cfg.Images, log)
}

// ProvideCalculator builds the nutrition calculator from the
// configured factor table and macro constants.
func ProvideCalculator(cfg *config.Config) *nutrition.Calculator {
	n := cfg.Nutrition
	return nutrition.NewCalculator(n.ActivityFactors, n.FatMinG, n.FatMaxG, n.FiberTargetG)
}

// ProvidePlannerService builds the planning service and instruments it.
func ProvidePlannerService(
	cfg *config.Config,
	log *zap.Logger,
	calculator *nutrition.Calculator,
	textGen outbound.TextGenerator,
	resolver *planner.ImageResolver,
	collector *monitoring.MetricsCollector,
	telemetry *monitoring.TelemetryProvider,
	pipeline *monitoring.PipelineMetrics,
	events *monitoring.Logger,
) inbound.PlannerService {
	svc := planner.NewPlannerService(calculator, textGen, resolver, cfg.Nutrition, log)
	return monitoring.InstrumentPlanner(svc, collector, telemetry, pipeline, events)
}

// ProvideHealthCheck builds the health registry. The model probe is
// the only hard dependency; Redis and the image providers report
// degraded so a provider outage never pulls the instance from
// rotation.
func ProvideHealthCheck(
	cfg *config.Config,
	log *zap.Logger,
	model ModelClient,
	redis *cache.RedisClient,
	svc *cache.Service,
	p *ImagePipeline,
) *healthcheck.HealthCheck {
	hc := healthcheck.New(cfg.App.Version, log)

	hc.Register("model", healthcheck.NewProbeChecker("model", model.HealthCheck))

	hc.Register("cache", healthcheck.NewCustomChecker("cache", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
		stats := svc.Stats()
		if cfg.Redis.Enable && redis == nil {
			return healthcheck.StatusDegraded, "Redis configured but unreachable, in-process tier only", stats
		}
		return healthcheck.StatusHealthy, fmt.Sprintf("%d entries in the local tier", stats.LocalSize), stats
	}))

	if redis != nil {
		hc.Register("redis", healthcheck.NewCustomChecker("redis", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			if err := redis.Ping(ctx); err != nil {
				return healthcheck.StatusDegraded, err.Error(), redis.GetMetrics()
			}
			return healthcheck.StatusHealthy, "connected", redis.GetMetrics()
		}))
	}

	if p.Breaker != nil {
		breaker := p.Breaker
		name := "images_" + p.Strategy
		hc.Register(name, healthcheck.NewCustomChecker(name, func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			status := breaker.Status()
			switch breaker.State() {
			case healthcheck.StateOpen:
				return healthcheck.StatusDegraded, "circuit open, plans render without images", status
			case healthcheck.StateHalfOpen:
				return healthcheck.StatusDegraded, "circuit recovering", status
			default:
				return healthcheck.StatusHealthy, "circuit closed", status
			}
		}))
	}

	return hc
}

// ProvideLiveReload enables template hot reload in development. Any
// watcher failure degrades to a plain server rather than blocking it.
func ProvideLiveReload(cfg *config.Config, log *zap.Logger) *hotreload.LiveReload {
	if !cfg.IsDevelopment() || !cfg.Server.EnableHotReload {
		return nil
	}
	reload, err := hotreload.New(hotreload.DefaultConfig(), log)
	if err != nil {
		log.Warn("Live reload unavailable", zap.Error(err))
		return nil
	}
	return reload
}

// RegisterLifecycleHooks ties the shared infrastructure to the fx
// lifecycle: background samplers start with the app and the cache,
// telemetry, and logger flush on the way down.
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	log *zap.Logger,
	telemetry *monitoring.TelemetryProvider,
	collector *monitoring.MetricsCollector,
	redis *cache.RedisClient,
	svc *cache.Service,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if collector != nil {
				go collector.StartUptimeCounter(ctx)
				go sampleCacheHitRatio(ctx, collector, svc)
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			if err := svc.Close(); err != nil {
				log.Warn("Cache close failed", zap.Error(err))
			}
			if redis != nil {
				if err := redis.Close(); err != nil {
					log.Warn("Redis close failed", zap.Error(err))
				}
			}
			if err := telemetry.Shutdown(stopCtx); err != nil {
				log.Warn("Telemetry shutdown failed", zap.Error(err))
			}
			_ = log.Sync()
			return nil
		},
	})
}

// sampleCacheHitRatio feeds the cache gauge from service stats.
func sampleCacheHitRatio(ctx context.Context, collector *monitoring.MetricsCollector, svc *cache.Service) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.UpdateCacheHitRatio("overall", svc.Stats().HitRatio)
		}
	}
}

// RegisterAPIServer starts the JSON API with the app and drains it on
// shutdown.
func RegisterAPIServer(lc fx.Lifecycle, server *apiserver.APIServer, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					log.Fatal("API server terminated", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})
}

// RegisterWebServer starts the frontend with the app and drains it on
// shutdown. Live reload, when configured, shares the server lifetime.
func RegisterWebServer(lc fx.Lifecycle, server *webserver.WebServer, reload *hotreload.LiveReload, log *zap.Logger) {
	reloadCtx, cancelReload := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if reload != nil {
				if err := reload.Start(reloadCtx); err != nil {
					log.Warn("Live reload failed to start", zap.Error(err))
				}
			}
			go func() {
				if err := server.Start(); err != nil {
					log.Fatal("Web server terminated", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancelReload()
			if reload != nil {
				if err := reload.Stop(); err != nil {
					log.Warn("Live reload stop failed", zap.Error(err))
				}
			}
			return server.Shutdown(stopCtx)
		},
	})
}
