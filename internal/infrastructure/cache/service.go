package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/ports/outbound"
)

const (
	defaultLocalCacheSize = 1024

	// TTL applied when an entry found in Redis is copied back into the
	// local tier. The authoritative expiry stays in Redis.
	localBackfillTTL = 5 * time.Minute

	cleanupInterval = 10 * time.Minute
)

// Service layers the local LRU cache over an optional Redis tier.
// With Redis disabled it runs local-only, which keeps single-node
// deployments free of external infrastructure.
type Service struct {
	local       *LocalCache
	redis       *RedisClient
	logger      *zap.Logger
	stopCleanup chan struct{}

	l1Hits   atomic.Int64
	l1Misses atomic.Int64
	l2Hits   atomic.Int64
	l2Misses atomic.Int64
	errors   atomic.Int64
}

var _ outbound.CacheRepository = (*Service)(nil)

// ServiceStats summarizes cache effectiveness across both tiers.
type ServiceStats struct {
	L1Hits    int64   `json:"l1_hits"`
	L1Misses  int64   `json:"l1_misses"`
	L2Hits    int64   `json:"l2_hits"`
	L2Misses  int64   `json:"l2_misses"`
	Errors    int64   `json:"errors"`
	LocalSize int     `json:"local_size"`
	HitRatio  float64 `json:"hit_ratio"`
}

// NewService creates the cache service. A nil redis client disables
// the second tier.
func NewService(redis *RedisClient, logger *zap.Logger) *Service {
	local := NewLocalCache(defaultLocalCacheSize)

	service := &Service{
		local:       local,
		redis:       redis,
		logger:      logger.Named("cache"),
		stopCleanup: local.AutoCleanup(cleanupInterval),
	}

	logger.Info("Cache service initialized",
		zap.Int("local_capacity", defaultLocalCacheSize),
		zap.Bool("redis_enabled", redis != nil))

	return service
}

// Get retrieves a value, local tier first, then Redis.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if data, found := s.local.Get(key); found {
		s.l1Hits.Add(1)
		return data, nil
	}
	s.l1Misses.Add(1)

	if s.redis == nil {
		return nil, ErrKeyNotFound
	}

	data, err := s.redis.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			s.l2Misses.Add(1)
			return nil, ErrKeyNotFound
		}
		s.errors.Add(1)
		return nil, err
	}

	s.l2Hits.Add(1)
	s.local.Set(key, data, localBackfillTTL)
	return data, nil
}

// Set stores a value in both tiers with the given TTL.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.local.Set(key, value, ttl)

	if s.redis == nil {
		return nil
	}

	if err := s.redis.Set(ctx, key, value, ttl); err != nil {
		s.errors.Add(1)
		return err
	}
	return nil
}

// Delete removes a value from both tiers.
func (s *Service) Delete(ctx context.Context, key string) error {
	s.local.Delete(key)

	if s.redis == nil {
		return nil
	}

	if err := s.redis.Delete(ctx, key); err != nil {
		s.errors.Add(1)
		return err
	}
	return nil
}

// Exists reports whether a key is present in either tier.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if s.local.Exists(key) {
		return true, nil
	}

	if s.redis == nil {
		return false, nil
	}

	n, err := s.redis.Exists(ctx, key)
	if err != nil {
		s.errors.Add(1)
		return false, err
	}
	return n > 0, nil
}

// Stats returns a snapshot of cache effectiveness.
func (s *Service) Stats() ServiceStats {
	hits := s.l1Hits.Load() + s.l2Hits.Load()
	misses := s.l1Misses.Load() + s.l2Misses.Load()
	if s.redis == nil {
		misses = s.l1Misses.Load()
	}

	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	return ServiceStats{
		L1Hits:    s.l1Hits.Load(),
		L1Misses:  s.l1Misses.Load(),
		L2Hits:    s.l2Hits.Load(),
		L2Misses:  s.l2Misses.Load(),
		Errors:    s.errors.Load(),
		LocalSize: s.local.Size(),
		HitRatio:  ratio,
	}
}

// Close stops background maintenance. The Redis client is owned by
// the container and closed there.
func (s *Service) Close() error {
	close(s.stopCleanup)
	return nil
}

// HashKey builds a namespaced cache key from a payload digest, so
// arbitrarily long prompts map to bounded keys.
func HashKey(namespace, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return namespace + ":" + hex.EncodeToString(sum[:16])
}
