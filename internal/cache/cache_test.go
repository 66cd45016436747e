package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisFromClient(rdb, "test"), mr
}

func backends(t *testing.T) map[string]Client {
	r, _ := newMiniRedis(t)
	return map[string]Client{
		"memory": NewMemory("test"),
		"redis":  r,
	}
}

func TestClient_SetGetDelete(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "missing")
			assert.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
			got, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestClient_SetNX(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := c.SetNX(ctx, "lock", []byte("a"), time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = c.SetNX(ctx, "lock", []byte("b"), time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := c.Get(ctx, "lock")
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), got)
		})
	}
}

func TestRedis_TTLExpires(t *testing.T) {
	c, mr := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	assert.True(t, mr.Exists("test:k"))

	mr.FastForward(time.Hour + time.Second)
	_, err := c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()
	in := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", in, 0))
	in[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestLock_MutualExclusion(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l1, ok, err := TryLock(ctx, c, "lock:a", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = TryLock(ctx, c, "lock:a", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = AcquireLock(ctx, c, "lock:a", time.Minute, 30*time.Millisecond, 10*time.Millisecond)
			assert.ErrorIs(t, err, ErrLockTimeout)

			require.NoError(t, l1.Release(ctx))
			l2, err := AcquireLock(ctx, c, "lock:a", time.Minute, time.Second, 10*time.Millisecond)
			require.NoError(t, err)
			require.NoError(t, l2.Release(ctx))
		})
	}
}
