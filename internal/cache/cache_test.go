package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/cache"
)

func TestMemoryThrottle_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	th := cache.NewMemoryThrottle().WithClock(func() time.Time { return now })

	ok, err := th.Allow(ctx, "u1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = th.Allow(ctx, "u1", 30*time.Second)
	assert.False(t, ok, "second call inside the window is throttled")

	ok, _ = th.Allow(ctx, "u2", 30*time.Second)
	assert.True(t, ok, "keys are independent")

	now = now.Add(30 * time.Second)
	ok, _ = th.Allow(ctx, "u1", 30*time.Second)
	assert.True(t, ok, "window elapsed")
}

func TestMemoryThrottle_Release(t *testing.T) {
	ctx := context.Background()
	th := cache.NewMemoryThrottle()

	ok, _ := th.Allow(ctx, "u1", time.Minute)
	require.True(t, ok)
	require.NoError(t, th.Release(ctx, "u1"))

	ok, err := th.Allow(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released key is admitted again inside the window")
	require.NoError(t, th.Release(ctx, "never-reserved"))
}

func TestMemoryThrottle_ZeroWindowAlwaysAllows(t *testing.T) {
	th := cache.NewMemoryThrottle()
	for i := 0; i < 3; i++ {
		ok, err := th.Allow(context.Background(), "u1", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisThrottle_Allow(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	th, err := cache.NewRedisThrottle(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = th.Close() })

	key := uuid.NewString()
	ok, err := th.Allow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Allow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, th.Release(ctx, key))
	ok, err = th.Allow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
