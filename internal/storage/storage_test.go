package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStorage(client, ttl), mr
}

func TestRedisStorage_SetGetRemove(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte(`{"v":1}`)))
	assert.True(t, mr.Exists("storefront:cart"))

	got, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	require.NoError(t, s.Remove(ctx, "cart"))
	assert.False(t, mr.Exists("storefront:cart"))

	_, err = s.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_TTL(t *testing.T) {
	s, mr := setupTestRedis(t, time.Hour)

	require.NoError(t, s.Set(context.Background(), "cart", []byte("x")))
	assert.Equal(t, time.Hour, mr.TTL("storefront:cart"))
}

func TestRedisStorage_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStorage(client, 0)
	mr.Close()

	err = s.Set(context.Background(), "cart", []byte("x"))
	assert.ErrorContains(t, err, "redis set failed")

	_, err = s.Get(context.Background(), "cart")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	v := []byte("value")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
