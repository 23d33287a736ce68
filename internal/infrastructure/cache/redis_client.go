package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/pkg/healthcheck"
)

// ErrKeyNotFound marks a cache miss in either tier.
var ErrKeyNotFound = errors.New("key not found in cache")

// latencyAlpha weights new samples in the moving latency average.
const latencyAlpha = 0.1

// RedisClient is the optional second cache tier. Every command runs
// through a circuit breaker, so once Redis stops answering the
// commands fail fast and the Service keeps serving from the local
// tier until the cooldown lets a trial request through.
type RedisClient struct {
	client  redis.UniversalClient
	breaker *healthcheck.Breaker
	logger  *zap.Logger

	commands atomic.Int64
	failures atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64

	latMu      sync.Mutex
	avgLatency time.Duration
}

// RedisMetrics is a point-in-time counter snapshot for the health
// endpoint.
type RedisMetrics struct {
	Commands     int64         `json:"commands"`
	Failures     int64         `json:"failures"`
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
	CircuitState string        `json:"circuit_state"`
}

// NewRedisClient connects to Redis and verifies the connection before
// handing the client out. The caller decides whether failure is
// fatal; the container treats it as a downgrade to local-only caching.
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	if cfg == nil {
		return nil, errors.New("redis config is nil")
	}

	r := &RedisClient{
		client: redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:           []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
			Password:        cfg.Password,
			DB:              cfg.Database,
			MaxRetries:      cfg.MaxRetries,
			PoolSize:        cfg.PoolSize,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ConnMaxIdleTime: 5 * time.Minute,
			PoolTimeout:     10 * time.Second,
		}),
		breaker: healthcheck.NewBreaker("redis", healthcheck.DefaultBreakerConfig()),
		logger:  logger.Named("redis-cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	r.logger.Info("Redis tier connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("database", cfg.Database))

	return r, nil
}

// Ping checks the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.run("PING", func() error {
		return r.client.Ping(ctx).Err()
	})
}

// Get reads one key. A missing key returns ErrKeyNotFound and counts
// as a healthy answer, not a circuit failure.
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var miss bool

	err := r.run("GET", func() error {
		b, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			miss = true
			return nil
		}
		value = b
		return err
	})
	if err != nil {
		r.misses.Add(1)
		return nil, err
	}
	if miss {
		r.misses.Add(1)
		return nil, ErrKeyNotFound
	}

	r.hits.Add(1)
	return value, nil
}

// Set stores one value under the given TTL.
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.run("SET", func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

// Delete removes the given keys. Session eviction passes batches, so
// an empty batch is a no-op rather than a protocol error.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.run("DEL", func() error {
		return r.client.Del(ctx, keys...).Err()
	})
}

// Exists reports how many of the given keys exist.
func (r *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := r.run("EXISTS", func() error {
		var err error
		n, err = r.client.Exists(ctx, keys...).Result()
		return err
	})
	return n, err
}

// GetMetrics snapshots the counters for health reporting.
func (r *RedisClient) GetMetrics() RedisMetrics {
	r.latMu.Lock()
	avg := r.avgLatency
	r.latMu.Unlock()

	return RedisMetrics{
		Commands:     r.commands.Load(),
		Failures:     r.failures.Load(),
		Hits:         r.hits.Load(),
		Misses:       r.misses.Load(),
		AvgLatency:   avg,
		CircuitState: r.breaker.State().String(),
	}
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// run sends one command through the breaker and folds the outcome
// into the counters. Rejected commands skip the latency average so
// instant failures do not drag it toward zero.
func (r *RedisClient) run(op string, fn func() error) error {
	r.commands.Add(1)

	start := time.Now()
	err := r.breaker.Execute(fn)
	if errors.Is(err, healthcheck.ErrOpen) {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	r.observeLatency(time.Since(start))

	if err != nil {
		r.failures.Add(1)
		r.logger.Warn("Redis command failed",
			zap.String("op", op),
			zap.Error(err))
	}
	return err
}

func (r *RedisClient) observeLatency(d time.Duration) {
	r.latMu.Lock()
	defer r.latMu.Unlock()

	if r.avgLatency == 0 {
		r.avgLatency = d
		return
	}
	r.avgLatency = time.Duration(float64(r.avgLatency)*(1-latencyAlpha) + float64(d)*latencyAlpha)
}
