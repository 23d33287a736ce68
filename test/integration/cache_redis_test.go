//go:build integration

// Package integration exercises the cache stack against a real Redis
// instance started with testcontainers.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/test/testutils"
)

// newCacheService builds a two-tier service over the container. Each
// call gets its own local tier, so two services model two instances
// sharing one Redis.
func newCacheService(t *testing.T, redis *testutils.TestRedis) *cache.Service {
	t.Helper()

	cfg := redis.RedisConfig()
	client, err := cache.NewRedisClient(&cfg, zap.NewNop())
	require.NoError(t, err, "Failed to connect to redis container")
	t.Cleanup(func() { client.Close() })

	service := cache.NewService(client, zap.NewNop())
	t.Cleanup(func() { service.Close() })
	return service
}

func TestTwoTierCache_SharedRedisTier(t *testing.T) {
	redis := testutils.SetupTestRedis(t)
	ctx := context.Background()

	instanceA := newCacheService(t, redis)
	instanceB := newCacheService(t, redis)

	require.NoError(t, instanceA.Set(ctx, "plan:text", []byte("Day 1"), time.Minute))

	// B has never seen the key locally, so this read comes from Redis
	data, err := instanceB.Get(ctx, "plan:text")
	require.NoError(t, err)
	assert.Equal(t, []byte("Day 1"), data)

	stats := instanceB.Stats()
	assert.Equal(t, int64(1), stats.L1Misses)
	assert.Equal(t, int64(1), stats.L2Hits)

	// The hit backfilled B's local tier
	_, err = instanceB.Get(ctx, "plan:text")
	require.NoError(t, err)
	assert.Equal(t, int64(1), instanceB.Stats().L1Hits)
}

func TestTwoTierCache_DeleteReachesBothTiers(t *testing.T) {
	redis := testutils.SetupTestRedis(t)
	ctx := context.Background()

	instanceA := newCacheService(t, redis)
	instanceB := newCacheService(t, redis)

	require.NoError(t, instanceA.Set(ctx, "img:key", []byte("png"), time.Minute))
	require.NoError(t, instanceA.Delete(ctx, "img:key"))

	_, err := instanceB.Get(ctx, "img:key")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
}

func TestTwoTierCache_TTLExpiresInRedis(t *testing.T) {
	redis := testutils.SetupTestRedis(t)
	ctx := context.Background()

	instanceA := newCacheService(t, redis)
	instanceB := newCacheService(t, redis)

	require.NoError(t, instanceA.Set(ctx, "short", []byte("lived"), time.Second))

	time.Sleep(1500 * time.Millisecond)

	_, err := instanceB.Get(ctx, "short")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
}

func TestSessionStore_SharedAcrossInstances(t *testing.T) {
	redis := testutils.SetupTestRedis(t)
	ctx := context.Background()

	sessionCfg := config.SessionConfig{CookieName: "mealsmith_session", MaxAge: time.Hour}
	storeA := cache.NewSessionStore(newCacheService(t, redis), sessionCfg, zap.NewNop())
	storeB := cache.NewSessionStore(newCacheService(t, redis), sessionCfg, zap.NewNop())

	session, err := storeA.Create(ctx)
	require.NoError(t, err)

	plan := testutils.NewPlanFactory(42).PlanDTO(7)
	require.NoError(t, storeA.SavePlan(ctx, session.ID, plan))

	// The other instance sees the session through Redis
	got, err := storeB.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Plan)
	assert.Equal(t, plan.ID, got.Plan.ID)
	assert.Len(t, got.ImageKeys, 7)

	require.NoError(t, storeB.Delete(ctx, session.ID))

	_, err = storeA.Get(ctx, session.ID)
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestGeneratedProfilesSurviveSessionRoundTrip(t *testing.T) {
	redis := testutils.SetupTestRedis(t)
	ctx := context.Background()

	store := cache.NewSessionStore(newCacheService(t, redis), config.SessionConfig{
		CookieName: "mealsmith_session",
		MaxAge:     time.Hour,
	}, zap.NewNop())

	plans := testutils.NewPlanFactory(7)
	for i := 0; i < 5; i++ {
		session, err := store.Create(ctx)
		require.NoError(t, err)

		plan := plans.PlanDTO(7)
		require.NoError(t, store.SavePlan(ctx, session.ID, plan))

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, got.Plan.ID)
		assert.Equal(t, 7, got.Plan.DaysDetected)
	}
}
