// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	APIServer  APIServerConfig  `mapstructure:"api_server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AI         AIConfig         `mapstructure:"ai"`
	Images     ImageConfig      `mapstructure:"images"`
	Nutrition  NutritionConfig  `mapstructure:"nutrition"`
	Session    SessionConfig    `mapstructure:"session"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains the web frontend HTTP server configuration
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	EnableHotReload   bool          `mapstructure:"enable_hot_reload"`
}

// APIServerConfig contains the JSON API server configuration
type APIServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// RedisConfig contains Redis configuration for the response cache.
// Redis is optional; with enable=false the in-memory cache is used.
type RedisConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// AIConfig contains text model configuration
type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	EnableCache    bool          `mapstructure:"enable_cache"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// ImageConfig contains meal image resolver configuration.
// Strategy is one of: auto, search, generate, off.
type ImageConfig struct {
	Strategy            string        `mapstructure:"strategy"`
	PexelsAPIKey        string        `mapstructure:"pexels_api_key"`
	PexelsBaseURL       string        `mapstructure:"pexels_base_url"`
	HuggingFaceAPIKey   string        `mapstructure:"huggingface_api_key"`
	HuggingFaceModel    string        `mapstructure:"huggingface_model"`
	HuggingFaceBaseURL  string        `mapstructure:"huggingface_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	FallbackSearchQuery string        `mapstructure:"fallback_search_query"`
}

// NutritionConfig contains the tunable nutrition constants.
// The activity factor table is the canonical five-level table; entries may be
// overridden individually.
type NutritionConfig struct {
	ActivityFactors       map[string]float64 `mapstructure:"activity_factors"`
	FatMinG               float64            `mapstructure:"fat_min_g"`
	FatMaxG               float64            `mapstructure:"fat_max_g"`
	FiberTargetG          float64            `mapstructure:"fiber_target_g"`
	DefaultBodyFatPercent float64            `mapstructure:"default_body_fat_percent"`
}

// SessionConfig contains web session configuration
type SessionConfig struct {
	CookieName      string        `mapstructure:"cookie_name"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	JaegerEndpoint  string  `mapstructure:"jaeger_endpoint"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
	LivenessPath    string  `mapstructure:"liveness_path"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enable          bool          `mapstructure:"enable"`
	RequestsPerMin  int           `mapstructure:"requests_per_min"`
	BurstSize       int           `mapstructure:"burst_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Image strategy values
const (
	ImageStrategyAuto     = "auto"
	ImageStrategySearch   = "search"
	ImageStrategyGenerate = "generate"
	ImageStrategyOff      = "off"
)

// Text model providers
const (
	AIProviderGemini = "gemini"
	AIProviderOpenAI = "openai"
	AIProviderOllama = "ollama"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Local .env files are a convenience for development; absence is fine.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mealsmith")
	}

	// Enable environment variable override
	v.SetEnvPrefix("MEALSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Mealsmith")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Web server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_compression", true)
	v.SetDefault("server.enable_hot_reload", false)

	// API server defaults
	v.SetDefault("api_server.host", "0.0.0.0")
	v.SetDefault("api_server.port", 3000)
	v.SetDefault("api_server.read_timeout", "15s")
	v.SetDefault("api_server.write_timeout", "5m")
	v.SetDefault("api_server.idle_timeout", "60s")
	v.SetDefault("api_server.shutdown_timeout", "30s")
	v.SetDefault("api_server.enable_cors", true)

	// Redis defaults
	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)

	// AI defaults. Each provider client fills in its canonical base URL
	// when none is configured.
	v.SetDefault("ai.provider", AIProviderGemini)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout_seconds", 120)
	v.SetDefault("ai.enable_cache", true)
	v.SetDefault("ai.cache_ttl", "1h")

	// Image defaults
	v.SetDefault("images.strategy", ImageStrategyAuto)
	v.SetDefault("images.pexels_base_url", "https://api.pexels.com/v1")
	v.SetDefault("images.huggingface_model", "stabilityai/stable-diffusion-xl-base-1.0")
	v.SetDefault("images.huggingface_base_url", "https://api-inference.huggingface.co")
	v.SetDefault("images.timeout", "60s")
	v.SetDefault("images.cache_ttl", "24h")
	v.SetDefault("images.fallback_search_query", "healthy food")

	// Nutrition defaults: five-level activity table, fixed macro floors
	v.SetDefault("nutrition.activity_factors", map[string]float64{
		"sedentary":    1.2,
		"light":        1.375,
		"moderate":     1.55,
		"active":       1.725,
		"extra_active": 1.9,
	})
	v.SetDefault("nutrition.fat_min_g", 50.0)
	v.SetDefault("nutrition.fat_max_g", 60.0)
	v.SetDefault("nutrition.fiber_target_g", 30.0)
	v.SetDefault("nutrition.default_body_fat_percent", 10.0)

	// Session defaults
	v.SetDefault("session.cookie_name", "mealsmith_session")
	v.SetDefault("session.max_age", "24h")
	v.SetDefault("session.cleanup_interval", "10m")
	v.SetDefault("session.secure_cookie", false)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")
	v.SetDefault("monitoring.liveness_path", "/live")

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.cleanup_interval", "1m")
}

// Validate validates the configuration. Missing credentials for the
// configured providers are fatal here, before any listener starts.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.APIServer.Port < 1 || c.APIServer.Port > 65535 {
		return fmt.Errorf("api_server.port must be between 1 and 65535")
	}

	switch c.AI.Provider {
	case AIProviderGemini, AIProviderOpenAI:
		if c.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required for the %s provider", c.AI.Provider)
		}
	case AIProviderOllama:
		// Local inference needs no credential.
	default:
		return fmt.Errorf("ai.provider must be one of gemini, openai, ollama")
	}

	switch c.Images.Strategy {
	case ImageStrategyAuto, ImageStrategyOff:
	case ImageStrategySearch:
		if c.Images.PexelsAPIKey == "" {
			return fmt.Errorf("images.pexels_api_key is required for the search strategy")
		}
	case ImageStrategyGenerate:
		if c.Images.HuggingFaceAPIKey == "" {
			return fmt.Errorf("images.huggingface_api_key is required for the generate strategy")
		}
	default:
		return fmt.Errorf("images.strategy must be one of auto, search, generate, off")
	}

	for level, factor := range c.Nutrition.ActivityFactors {
		if factor <= 0 {
			return fmt.Errorf("nutrition.activity_factors.%s must be positive", level)
		}
	}
	if c.Nutrition.FatMinG > c.Nutrition.FatMaxG {
		return fmt.Errorf("nutrition.fat_min_g must not exceed nutrition.fat_max_g")
	}

	return nil
}

// ResolveImageStrategy maps the auto strategy onto whichever image provider
// has a credential configured, preferring search. Returns off when neither is
// available.
func (c *Config) ResolveImageStrategy() string {
	if c.Images.Strategy != ImageStrategyAuto {
		return c.Images.Strategy
	}
	if c.Images.PexelsAPIKey != "" {
		return ImageStrategySearch
	}
	if c.Images.HuggingFaceAPIKey != "" {
		return ImageStrategyGenerate
	}
	return ImageStrategyOff
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// RedisAddr returns the host:port address of the Redis cache
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
