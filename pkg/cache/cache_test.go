package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "p", point{Symbol: "AAPL", Prices: []float64{1, 2}}, time.Minute))
	got, err := GetTyped[point](ctx, mc, "p")
	require.NoError(t, err)
	assert.Equal(t, point{Symbol: "AAPL", Prices: []float64{1, 2}}, got)

	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)

	var missing point
	assert.True(t, errors.Is(mc.Get(ctx, "nope", &missing), ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(2 * time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"forecast:1", "forecast:2", "historical:AAPL"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, Pattern("forecast:")))

	ok, _ := mc.Exists(ctx, "forecast:1", "forecast:2")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "historical:AAPL")
	assert.True(t, ok)
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:report:AAPL", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock:report:AAPL", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:report:AAPL"))
	ok, _ = mc.TryLock(ctx, "lock:report:AAPL", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCacheFillsL1FromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote)
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", point{Symbol: "MSFT"}, time.Minute))

	got, err := GetTyped[point](ctx, lc, "k")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got.Symbol)

	// remote gone, L1 still answers
	require.NoError(t, remote.Delete(ctx, "k"))
	got, err = GetTyped[point](ctx, lc, "k")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got.Symbol)
}

func TestHashFloatsIsStable(t *testing.T) {
	a := HashFloats([]float64{1, 2, 3})
	assert.Equal(t, a, HashFloats([]float64{1, 2, 3}))
	assert.NotEqual(t, a, HashFloats([]float64{1, 2, 3.0000001}))
	assert.Equal(t, "forecast:AAPL:5", Key("forecast", "AAPL", 5))
}

func TestRedisCachePrefixesKeys(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	rc := NewRedisCache(db, "sc")

	mock.ExpectSet("sc:p", []byte(`{"symbol":"AAPL","prices":null}`), time.Minute).SetVal("OK")
	require.NoError(t, rc.Set(ctx, "p", point{Symbol: "AAPL"}, time.Minute))

	mock.ExpectGet("sc:p").SetVal(`{"symbol":"AAPL","prices":[1]}`)
	got, err := GetTyped[point](ctx, rc, "p")
	require.NoError(t, err)
	assert.Equal(t, point{Symbol: "AAPL", Prices: []float64{1}}, got)

	mock.ExpectGet("sc:gone").RedisNil()
	var v point
	assert.ErrorIs(t, rc.Get(ctx, "gone", &v), ErrCacheMiss)

	mock.ExpectSetNX("sc:lock", "locked", time.Minute).SetVal(true)
	ok, err := rc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectDel("sc:lock").SetVal(1)
	require.NoError(t, rc.Unlock(ctx, "lock"))

	require.NoError(t, mock.ExpectationsWereMet())
}
