package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/cache"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "d1")
	require.False(t, ok)

	c.Set(ctx, sampleConfig("d1"))
	got, ok := c.Get(ctx, "d1")
	require.True(t, ok)
	assert.Equal(t, "d1", got.DeviceID)

	c.Delete(ctx, "d1")
	_, ok = c.Get(ctx, "d1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := cache.NewMemoryCache(10 * time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, sampleConfig("d1"))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "d1")
	assert.False(t, ok)
}

func TestMemoryCacheIsolatesStoredValue(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	ctx := context.Background()

	cfg := sampleConfig("d1")
	c.Set(ctx, cfg)
	cfg.StakeLimit = 1

	got, ok := c.Get(ctx, "d1")
	require.True(t, ok)
	assert.Equal(t, float64(999), got.StakeLimit)

	// Mutating a read value must not leak back into the cache either.
	got.StakeLimit = 2
	again, ok := c.Get(ctx, "d1")
	require.True(t, ok)
	assert.Equal(t, float64(999), again.StakeLimit)
}
