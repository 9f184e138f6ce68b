package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/d-alleyne/mailpoet/internal/testutil"
)

func newRedisTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: testutil.GetRedisAddress(t)})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	// Unique prefix per test so parallel tests don't see each other's jobs.
	return NewRedisQueue(client, "test:"+uuid.NewString()+":")
}

func TestRedisQueue(t *testing.T) {
	t.Parallel()
	runQueueTests(t, newRedisTestQueue(t))
}

func TestRedisQueue_DelayedJob(t *testing.T) {
	t.Parallel()
	runDelayedJobTest(t, newRedisTestQueue(t))
}
