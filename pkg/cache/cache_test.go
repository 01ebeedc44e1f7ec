package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache() (*noopValkeyCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := newMemoryCache(logger.NewNop())
	c.now = clock.now
	return c, clock
}

func TestMemoryCache_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "raw", []byte("bytes"), time.Minute))
	require.NoError(t, c.Set(ctx, "json", map[string]int{"a": 1}, 0))

	b, err := c.Get(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(b))
	b, err = c.Get(ctx, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	clock.t = clock.t.Add(time.Minute)
	_, err = c.Get(ctx, "raw")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "json")
	assert.NoError(t, err, "zero ttl never expires")

	require.NoError(t, c.Delete(ctx, "json"))
	_, err = c.Get(ctx, "json")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_QueryResult(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	require.NoError(t, c.CacheQueryResult(ctx, "abc", struct{ N int }{7}, time.Minute))

	b, err := c.GetCachedQueryResult(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"N":7}`, string(b))

	b, err = c.Get(ctx, "rollout:result:abc")
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestMemoryCache_IncrWindow(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWindow(ctx, "rl:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	clock.t = clock.t.Add(59 * time.Second)
	n, _ := c.IncrWindow(ctx, "rl:1.2.3.4", time.Minute)
	assert.Equal(t, int64(4), n, "window is fixed from the first hit")

	clock.t = clock.t.Add(time.Second)
	n, _ = c.IncrWindow(ctx, "rl:1.2.3.4", time.Minute)
	assert.Equal(t, int64(1), n)
}

func TestAutoSwap_SwitchesWhenReachable(t *testing.T) {
	ctx := context.Background()
	fallback, _ := newTestCache()
	real, _ := newTestCache()
	require.NoError(t, real.Set(ctx, "k", "from-real", 0))

	var attempts atomic.Int32
	a := newAutoSwapCache(fallback, logger.NewNop(), 10*time.Millisecond, func() (ValkeyCluster, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return real, nil
	})
	defer a.Stop()

	_, err := a.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Eventually(t, func() bool {
		b, err := a.Get(ctx, "k")
		return err == nil && string(b) == "from-real"
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
	assert.NoError(t, a.HealthCheck(ctx))
}

func TestNew_NoNodesIsInMemory(t *testing.T) {
	c := New(nil, 0, "", time.Minute, logger.NewNop())
	_, ok := c.(*noopValkeyCache)
	assert.True(t, ok)
}
