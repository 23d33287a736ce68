package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

const redisPort = nat.Port("6379/tcp")

// TestRedis provides a throwaway Redis instance for integration tests.
type TestRedis struct {
	Container testcontainers.Container
	Host      string
	Port      nat.Port
}

// SetupTestRedis starts a Redis container and registers its teardown
// with the test.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{string(redisPort)},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	return &TestRedis{
		Container: container,
		Host:      host,
		Port:      mapped,
	}
}

// RedisConfig returns a cache configuration pointing at the container.
func (tr *TestRedis) RedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Enable:       true,
		Host:         tr.Host,
		Port:         tr.Port.Int(),
		Database:     0,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     5,
	}
}
