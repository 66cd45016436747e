package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/cache"
)

const testProtectionKey = "test-protection-key-0123456789abcdef"

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testProtectionKey)
	require.NoError(t, err)
	return c
}

func sampleTicket() *Ticket {
	now := time.Now().UTC().Truncate(time.Second)
	return &Ticket{
		Principal: Principal{
			AuthenticationType: "cookie",
			Claims: []Claim{
				{Type: ClaimSubject, Value: "u1"},
				{Type: ClaimEmail, Value: "a@example.com"},
				{Type: ClaimRole, Value: "User"},
				{Type: ClaimRole, Value: "Admin"},
			},
		},
		Tokens: map[string]string{
			TokenID:        "id.jwt",
			TokenAccess:    "access",
			TokenRefresh:   "refresh",
			TokenExpiresAt: now.Add(time.Hour).Format(time.RFC3339),
		},
		Properties: map[string]string{
			PropClientID:      "client",
			PropClientSecret:  "secret",
			PropTokenEndpoint: "https://idp.example/token",
		},
		IssuedUTC:  now,
		ExpiresUTC: now.Add(30 * time.Minute),
	}
}

func backends(t *testing.T) map[string]cache.Client {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]cache.Client{
		"memory": cache.NewMemory(""),
		"redis":  cache.NewRedisFromClient(rdb, "al"),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(c, newCodec(t), time.Hour)
			in := sampleTicket()

			key, err := s.Store(ctx, in.Clone())
			require.NoError(t, err)
			require.NotEmpty(t, key)

			out, err := s.Retrieve(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestStore_RawKeyNeverReachesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewStore(cache.NewRedisFromClient(rdb, ""), newCodec(t), time.Hour)

	key, err := s.Store(context.Background(), sampleTicket())
	require.NoError(t, err)

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, key)
	}
	assert.True(t, mr.Exists(CacheKey(key)))
	assert.Equal(t, time.Hour, mr.TTL(CacheKey(key)))

	raw, err := mr.Get(CacheKey(key))
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")
}

func TestStore_RenewOverwritesAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory(""), newCodec(t), time.Hour)
	tk := sampleTicket()
	key, err := s.Store(ctx, tk)
	require.NoError(t, err)

	tk.SetToken(TokenAccess, "access-2")
	require.NoError(t, s.Renew(ctx, key, tk))

	got, err := s.Retrieve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.Token(TokenAccess))

	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Retrieve(ctx, key)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestStore_RetrieveMissingOrExpired(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory(""), newCodec(t), time.Hour)

	_, err := s.Retrieve(ctx, "nope")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	tk := sampleTicket()
	tk.ExpiresUTC = time.Now().UTC().Add(-time.Minute)
	key, err := s.Store(ctx, tk)
	require.NoError(t, err)
	_, err = s.Retrieve(ctx, key)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestStore_RedisTTLElapses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewStore(cache.NewRedisFromClient(rdb, ""), newCodec(t), time.Hour)

	key, err := s.Store(context.Background(), sampleTicket())
	require.NoError(t, err)
	mr.FastForward(time.Hour + time.Second)

	_, err = s.Retrieve(context.Background(), key)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestStore_ForeignProtectionKey(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory("")
	a := NewStore(c, newCodec(t), time.Hour)
	other, err := NewCodec("another-protection-key-abcdefghijkl")
	require.NoError(t, err)
	b := NewStore(c, other, time.Hour)

	key, err := a.Store(ctx, sampleTicket())
	require.NoError(t, err)
	_, err = b.Retrieve(ctx, key)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
