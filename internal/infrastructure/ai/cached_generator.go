// Package ai layers caching over text generation so identical prompts
// reuse earlier completions instead of paying for a second model call.
package ai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/outbound"
)

const completionKeyspace = "ai:completion"

// cacheWriteTimeout bounds the async write so a slow cache never
// holds a goroutine hostage.
const cacheWriteTimeout = 5 * time.Second

// CachedTextGenerator wraps a text generator with cache-first reads.
type CachedTextGenerator struct {
	inner  outbound.TextGenerator
	cache  outbound.CacheRepository
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

var _ outbound.TextGenerator = (*CachedTextGenerator)(nil)

// NewCachedTextGenerator creates the caching wrapper. Completions are
// keyed by model and prompt digest with the configured TTL.
func NewCachedTextGenerator(inner outbound.TextGenerator, cacheRepo outbound.CacheRepository, cfg config.AIConfig, logger *zap.Logger) *CachedTextGenerator {
	return &CachedTextGenerator{
		inner:  inner,
		cache:  cacheRepo,
		model:  cfg.Model,
		ttl:    cfg.CacheTTL,
		logger: logger.Named("ai-cache"),
	}
}

// Generate returns a cached completion when one exists, otherwise
// generates and caches the result in the background.
func (g *CachedTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cache.HashKey(completionKeyspace, g.model+"|"+prompt)

	if data, err := g.cache.Get(ctx, key); err == nil {
		g.logger.Debug("Completion cache hit", zap.String("key", key))
		return string(data), nil
	} else if err != cache.ErrKeyNotFound {
		g.logger.Debug("Completion cache read failed", zap.Error(err))
	}

	completion, err := g.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := g.cache.Set(writeCtx, key, []byte(completion), g.ttl); err != nil {
			g.logger.Warn("Failed to cache completion",
				zap.String("key", key), zap.Error(err))
		}
	}()

	return completion, nil
}
