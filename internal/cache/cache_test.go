package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Month int    `json:"month"`
	Total string `json:"total"`
}

func exerciseCache(t *testing.T, c Cache[entry]) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "2025-03")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "2025-03", entry{Month: 3, Total: "10.00"}))
	got, err := c.Get(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, entry{Month: 3, Total: "10.00"}, got)

	require.NoError(t, c.Delete(ctx, "2025-03"))
	_, err = c.Get(ctx, "2025-03")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	// Deleting a missing key is not an error.
	assert.NoError(t, c.Delete(ctx, "2025-03"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemory[entry](10, time.Minute)
	assert.Equal(t, "memory", c.Name())
	exerciseCache(t, c)
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](1, time.Minute)

	for i := 0; i < minEntries+1; i++ {
		require.NoError(t, c.Set(ctx, string(rune('a'+i)), i))
	}
	assert.Equal(t, minEntries, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](10, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", 1))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return errors.Is(err, ErrCacheMiss)
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedis[entry](client, "faturamento:summary:", time.Minute)
	assert.Equal(t, "redis", c.Name())
	exerciseCache(t, c)

	require.NoError(t, c.Set(context.Background(), "2025-04", entry{Month: 4}))
	assert.True(t, mr.Exists("faturamento:summary:2025-04"))
	assert.Greater(t, mr.TTL("faturamento:summary:2025-04"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(context.Background(), "2025-04")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedis[entry](client, "p:", time.Minute)
	mr.Close()

	_, err = c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}

func TestNewRedisClientFailsFast(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
