package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("basic operations", func(t *testing.T) {
		c := NewMemoryCache(5 * time.Minute)
		defer func() { _ = c.Close() }()

		_, found, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, c.Set(ctx, "product:1:children", []byte(`[2,3]`)))
		got, found, err := c.Get(ctx, "product:1:children")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, `[2,3]`, string(got))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("expiration", func(t *testing.T) {
		c := NewMemoryCache(50 * time.Millisecond)
		defer func() { _ = c.Close() }()

		require.NoError(t, c.Set(ctx, "k", []byte("v")))
		_, found, _ := c.Get(ctx, "k")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)

		_, found, _ = c.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("delete pattern", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer func() { _ = c.Close() }()

		for _, k := range []string{"product:1:children", "product:1:sources", "product:12:sources", "source:all"} {
			require.NoError(t, c.Set(ctx, k, []byte("x")))
		}

		n, err := c.DeletePattern(ctx, "product:1:*")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = c.DeletePattern(ctx, "product:*:sources")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, found, _ := c.Get(ctx, "source:all")
		assert.True(t, found)

		_, err = c.DeletePattern(ctx, "[")
		assert.Error(t, err)
	})

	t.Run("concurrent access", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer func() { _ = c.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = c.Set(ctx, "concurrent", []byte("v"))
					_, _, _ = c.Get(ctx, "concurrent")
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, c.Len())
	})

	t.Run("close twice", func(t *testing.T) {
		c := NewMemoryCache(0)
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	})
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()

	calls := 0
	compute := func(context.Context) ([]int64, error) {
		calls++
		return []int64{10, 11}, nil
	}

	got, err := GetOrCompute(ctx, c, "product:1:children", compute)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, got)

	got, err = GetOrCompute(ctx, c, "product:1:children", compute)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, got)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = GetOrCompute(ctx, c, "product:2:children", func(context.Context) ([]int64, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, found, _ := c.Get(ctx, "product:2:children")
	assert.False(t, found)
}

func TestGetOrComputeDiscardsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set(ctx, "k", []byte("not json")))
	got, err := GetOrCompute(ctx, c, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("HARVEST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HARVEST_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{
		Addr:   addr,
		Prefix: "harvest-test:",
		TTL:    time.Minute,
		Retry:  service.RetryOptions{MaxAttempts: 1},
	})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.DeletePattern(ctx, "*")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "product:1:children", []byte(`[2]`)))
	require.NoError(t, c.Set(ctx, "product:1:sources", []byte(`[]`)))
	require.NoError(t, c.Set(ctx, "source:all", []byte(`[]`)))

	got, found, err := c.Get(ctx, "product:1:children")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[2]`, string(got))

	n, err := c.DeletePattern(ctx, "product:1:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err = c.Get(ctx, "product:1:children")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Health(ctx))
}
