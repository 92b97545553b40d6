package cache

import (
	"context"
	"testing"
	"time"

	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(maxSize int, ttl time.Duration) (*Manager, *time.Time) {
	clock := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	m := NewManager(config.CacheConfig{Enabled: true, MaxSize: maxSize, TTL: ttl})
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestManager_SetGet(t *testing.T) {
	m, _ := newTestManager(10, time.Minute)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "cases:ayam", []byte(`[1,2]`)))

	got, err := m.Get(ctx, "cases:ayam")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1,2]`), got)

	_, err = m.Get(ctx, "cases:tahu")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManager_Expiry(t *testing.T) {
	m, clock := newTestManager(10, time.Minute)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	*clock = clock.Add(2 * time.Minute)

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	assert.Equal(t, 0, m.GetStats()["size"])
}

func TestManager_EvictsLeastUsed(t *testing.T) {
	m, clock := newTestManager(2, time.Hour)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	*clock = clock.Add(time.Second)
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3")))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestManager_ReturnsCopies(t *testing.T) {
	m, _ := newTestManager(10, time.Hour)
	defer m.Close()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestManager_Stats(t *testing.T) {
	m, _ := newTestManager(10, time.Hour)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	_, _ = m.Get(ctx, "k")
	_, _ = m.Get(ctx, "missing")

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.InDelta(t, 0.5, stats["hit_ratio"], 0.0001)
}

func TestNew_SelectsBackend(t *testing.T) {
	c, err := New(config.CacheConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(config.CacheConfig{Enabled: true, Backend: "memory", MaxSize: 5, TTL: time.Minute}, nil)
	require.NoError(t, err)
	require.IsType(t, &Manager{}, c)
	_ = c.Close()

	_, err = New(config.CacheConfig{Enabled: true, Backend: "redis"}, nil)
	assert.Error(t, err)

	_, err = New(config.CacheConfig{Enabled: true, Backend: "memcached"}, nil)
	assert.Error(t, err)
}

func TestKey_Prefixed(t *testing.T) {
	assert.Equal(t, "school-meal:cases:abc", Key("cases:abc"))
}
