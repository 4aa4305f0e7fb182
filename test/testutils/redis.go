package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedis provides a throwaway Redis instance with cleanup
type TestRedis struct {
	Container testcontainers.Container
	Client    *redis.Client
	Addr      string
	t         *testing.T
}

// RedisConfig holds test Redis configuration
type RedisConfig struct {
	Image string
	Port  string
}

// DefaultRedisConfig returns the default test Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Image: "redis:7-alpine",
		Port:  "6379",
	}
}

// SetupTestRedis starts Redis in a container. Tests are skipped under
// -short or when SKIP_CONTAINER_TESTS is set.
func SetupTestRedis(t *testing.T) *TestRedis {
	return SetupTestRedisWithConfig(t, DefaultRedisConfig())
}

// SetupTestRedisWithConfig starts Redis with a custom configuration
func SetupTestRedisWithConfig(t *testing.T, cfg RedisConfig) *TestRedis {
	if testing.Short() || os.Getenv("SKIP_CONTAINER_TESTS") != "" {
		t.Skip("skipping container-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        cfg.Image,
				ExposedPorts: []string{cfg.Port + "/tcp"},
				WaitingFor: wait.ForLog("Ready to accept connections").
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
	require.NoError(t, err, "Failed to start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	addr := fmt.Sprintf("%s:%s", host, port.Port())
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(ctx).Err(), "Failed to ping redis")

	tr := &TestRedis{
		Container: container,
		Client:    client,
		Addr:      addr,
		t:         t,
	}
	t.Cleanup(tr.Cleanup)
	return tr
}

// Flush removes every key between test cases
func (tr *TestRedis) Flush() {
	require.NoError(tr.t, tr.Client.FlushAll(context.Background()).Err())
}

// Cleanup closes the client and terminates the container
func (tr *TestRedis) Cleanup() {
	if tr.Client != nil {
		_ = tr.Client.Close()
	}
	if tr.Container != nil {
		_ = tr.Container.Terminate(context.Background())
	}
}
