// Package cache provides tests for the two-tier cache and session store
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/inbound"
)

func TestLocalCache_SetGet(t *testing.T) {
	lc := NewLocalCache(16)

	lc.Set("a", []byte("value-a"), time.Hour)

	data, found := lc.Get("a")
	require.True(t, found)
	assert.Equal(t, []byte("value-a"), data)

	_, found = lc.Get("missing")
	assert.False(t, found)
}

func TestLocalCache_ExpiredEntryIsGone(t *testing.T) {
	lc := NewLocalCache(16)

	lc.Set("a", []byte("stale"), -time.Second)

	_, found := lc.Get("a")
	assert.False(t, found)
	assert.False(t, lc.Exists("a"))
	assert.Equal(t, 0, lc.Size())
}

func TestLocalCache_LRUEviction(t *testing.T) {
	lc := NewLocalCache(2)

	lc.Set("a", []byte("1"), time.Hour)
	lc.Set("b", []byte("2"), time.Hour)

	// Touch a so b becomes the eviction candidate
	_, found := lc.Get("a")
	require.True(t, found)

	lc.Set("c", []byte("3"), time.Hour)

	assert.True(t, lc.Exists("a"))
	assert.False(t, lc.Exists("b"))
	assert.True(t, lc.Exists("c"))
	assert.Equal(t, 2, lc.Size())
}

func TestLocalCache_UpdateKeepsSingleEntry(t *testing.T) {
	lc := NewLocalCache(16)

	lc.Set("a", []byte("old"), time.Hour)
	lc.Set("a", []byte("new"), time.Hour)

	data, found := lc.Get("a")
	require.True(t, found)
	assert.Equal(t, []byte("new"), data)
	assert.Equal(t, 1, lc.Size())
}

func TestLocalCache_CleanupExpired(t *testing.T) {
	lc := NewLocalCache(16)

	lc.Set("stale1", []byte("x"), -time.Second)
	lc.Set("stale2", []byte("y"), -time.Second)
	lc.Set("fresh", []byte("z"), time.Hour)

	removed := lc.CleanupExpired()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, lc.Size())
	assert.True(t, lc.Exists("fresh"))
}

func newLocalOnlyService(t *testing.T) *Service {
	t.Helper()
	service := NewService(nil, zap.NewNop())
	t.Cleanup(func() { service.Close() })
	return service
}

func TestService_LocalRoundTrip(t *testing.T) {
	service := newLocalOnlyService(t)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, "k", []byte("v"), time.Hour))

	data, err := service.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)

	exists, err := service.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, service.Delete(ctx, "k"))

	_, err = service.Get(ctx, "k")
	assert.Equal(t, ErrKeyNotFound, err)
}

func TestService_MissWithoutRedisIsKeyNotFound(t *testing.T) {
	service := newLocalOnlyService(t)

	_, err := service.Get(context.Background(), "nope")
	assert.Equal(t, ErrKeyNotFound, err)

	exists, err := service.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestService_StatsTrackHitsAndMisses(t *testing.T) {
	service := newLocalOnlyService(t)
	ctx := context.Background()

	service.Set(ctx, "k", []byte("v"), time.Hour)
	service.Get(ctx, "k")
	service.Get(ctx, "k")
	service.Get(ctx, "missing")

	stats := service.Stats()
	assert.Equal(t, int64(2), stats.L1Hits)
	assert.Equal(t, int64(1), stats.L1Misses)
	assert.Equal(t, 1, stats.LocalSize)
	assert.InDelta(t, 2.0/3.0, stats.HitRatio, 0.001)
}

func TestHashKey(t *testing.T) {
	a := HashKey("ai:completion", "some prompt")
	b := HashKey("ai:completion", "some prompt")
	c := HashKey("ai:completion", "another prompt")
	d := HashKey("img", "some prompt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	// Namespace prefix plus a fixed-width digest
	assert.Equal(t, len("ai:completion")+1+32, len(a))
	assert.Contains(t, a, "ai:completion:")
}

// Session store tests

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		CookieName: "mealsmith_session",
		MaxAge:     time.Hour,
	}
}

func newTestSessionStore(t *testing.T) (*SessionStore, *Service) {
	t.Helper()
	service := newLocalOnlyService(t)
	store := NewSessionStore(service, testSessionConfig(), zap.NewNop())
	return store, service
}

func planWithImageKeys(keys ...string) *inbound.MealPlanDTO {
	meals := make([]inbound.MealDTO, 0, len(keys))
	for i, key := range keys {
		meals = append(meals, inbound.MealDTO{
			MealType:    "Breakfast",
			Description: fmt.Sprintf("meal %d", i),
			ImageKey:    key,
		})
	}
	return &inbound.MealPlanDTO{
		ID:   fmt.Sprintf("plan-%d", len(keys)),
		Days: []inbound.DayPlanDTO{{Heading: "Day 1", Meals: meals}},
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, _ := newTestSessionStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Nil(t, got.Plan)
}

func TestSessionStore_GetUnknownSession(t *testing.T) {
	store, _ := newTestSessionStore(t)

	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_ExpiredSessionIsNotFound(t *testing.T) {
	store, service := newTestSessionStore(t)
	ctx := context.Background()

	// Entry still cached but past its own expiry marker
	stale := &PlanSession{
		ID:        "stale",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, service.Set(ctx, "session:stale", data, time.Hour))

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, err := service.Exists(ctx, "session:stale")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionStore_SavePlanTracksImageKeys(t *testing.T) {
	store, _ := newTestSessionStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	plan := planWithImageKeys("img:a", "img:b")
	require.NoError(t, store.SavePlan(ctx, session.ID, plan))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Plan)
	assert.Equal(t, plan.ID, got.Plan.ID)
	assert.Equal(t, []string{"img:a", "img:b"}, got.ImageKeys)
}

func TestSessionStore_ReplacingPlanEvictsOrphanedImages(t *testing.T) {
	store, service := newTestSessionStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	for _, key := range []string{"img:a", "img:b", "img:c"} {
		require.NoError(t, service.Set(ctx, key, []byte("png"), time.Hour))
	}

	require.NoError(t, store.SavePlan(ctx, session.ID, planWithImageKeys("img:a", "img:b")))
	require.NoError(t, store.SavePlan(ctx, session.ID, planWithImageKeys("img:b", "img:c")))

	// a belonged only to the replaced plan; b is shared and stays
	existsA, _ := service.Exists(ctx, "img:a")
	existsB, _ := service.Exists(ctx, "img:b")
	existsC, _ := service.Exists(ctx, "img:c")
	assert.False(t, existsA)
	assert.True(t, existsB)
	assert.True(t, existsC)
}

func TestSessionStore_DeleteEvictsSessionImages(t *testing.T) {
	store, service := newTestSessionStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, service.Set(ctx, "img:a", []byte("png"), time.Hour))
	require.NoError(t, store.SavePlan(ctx, session.ID, planWithImageKeys("img:a")))

	require.NoError(t, store.Delete(ctx, session.ID))

	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, _ := service.Exists(ctx, "img:a")
	assert.False(t, exists)
}

// Benchmarks

func BenchmarkLocalCache(b *testing.B) {
	lc := NewLocalCache(1024)

	b.Run("Set", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			key := fmt.Sprintf("bench_key_%d", i%1024)
			lc.Set(key, []byte("bench_data"), time.Hour)
		}
	})

	b.Run("Get", func(b *testing.B) {
		for i := 0; i < 1024; i++ {
			lc.Set(fmt.Sprintf("bench_key_%d", i), []byte("bench_data"), time.Hour)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			lc.Get(fmt.Sprintf("bench_key_%d", i%1024))
		}
	})
}

func BenchmarkHashKey(b *testing.B) {
	prompt := "Create a personalized 7-day meal plan for the following individual"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashKey("ai:completion", prompt)
	}
}
