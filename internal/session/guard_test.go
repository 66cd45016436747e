package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

const protectionKey = "session-test-protection-key-012345"

type tokenEndpoint struct {
	srv   *httptest.Server
	calls atomic.Int32
	fail  bool
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	te := &tokenEndpoint{}
	te.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := te.calls.Add(1)
		if te.fail {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = r.ParseForm()
		// los refresh tokens son de un solo uso
		if r.PostForm.Get("refresh_token") != "rt-0" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id_token":"id-%d","access_token":"at-%d","refresh_token":"rt-%d","expires_in":3600}`, n, n, n)
	}))
	t.Cleanup(te.srv.Close)
	return te
}

func staleTicket(endpoint string) *ticket.Ticket {
	now := time.Now().UTC()
	return &ticket.Ticket{
		Principal: ticket.Principal{Claims: []ticket.Claim{{Type: ticket.ClaimSubject, Value: "u1"}}},
		Tokens: map[string]string{
			ticket.TokenID:        "id-0",
			ticket.TokenAccess:    "at-0",
			ticket.TokenRefresh:   "rt-0",
			ticket.TokenExpiresAt: now.Add(30 * time.Second).Format(time.RFC3339),
		},
		Properties: map[string]string{
			ticket.PropClientID:      "cid",
			ticket.PropClientSecret:  "cs",
			ticket.PropTokenEndpoint: endpoint,
		},
		IssuedUTC:  now,
		ExpiresUTC: now.Add(time.Hour),
	}
}

func newTicketStore(t *testing.T, c cache.Client) *ticket.Store {
	codec, err := ticket.NewCodec(protectionKey)
	require.NoError(t, err)
	return ticket.NewStore(c, codec, time.Hour)
}

func TestGuard_RefreshesExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(ctx, staleTicket(te.srv.URL))
	require.NoError(t, err)

	// dos guards sobre el mismo cache simulan dos instancias
	guards := []*Guard{
		NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0),
		NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0),
	}

	var wg sync.WaitGroup
	results := make([]*ticket.Ticket, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cur, err := store.Retrieve(ctx, key)
			if err != nil {
				return
			}
			results[i], _ = guards[i%2].Apply(ctx, key, cur)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), te.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "rt-1", r.Token(ticket.TokenRefresh))
	}

	persisted, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "id-1", persisted.Token(ticket.TokenID))
	assert.Equal(t, "at-1", persisted.Token(ticket.TokenAccess))
}

func TestGuard_FreshTicketIsUntouched(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	tk := staleTicket(te.srv.URL)
	tk.SetToken(ticket.TokenExpiresAt, time.Now().UTC().Add(time.Hour).Format(time.RFC3339))

	out, renewed := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0).Apply(ctx, "k", tk)
	assert.False(t, renewed)
	assert.Equal(t, "rt-0", out.Token(ticket.TokenRefresh))
	assert.Equal(t, int32(0), te.calls.Load())
}

func TestGuard_EmptyRefreshLeavesTicket(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	te.fail = true
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(ctx, staleTicket(te.srv.URL))
	require.NoError(t, err)
	cur, err := store.Retrieve(ctx, key)
	require.NoError(t, err)

	out, renewed := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0).Apply(ctx, key, cur)
	assert.False(t, renewed)
	assert.Equal(t, "rt-0", out.Token(ticket.TokenRefresh))
	assert.Equal(t, int32(1), te.calls.Load())

	persisted, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "at-0", persisted.Token(ticket.TokenAccess))
}

func TestGuard_LockHeldElsewhereDegrades(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(ctx, staleTicket(te.srv.URL))
	require.NoError(t, err)
	cur, _ := store.Retrieve(ctx, key)

	ctxShort, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, ok, err := cache.TryLock(ctx, c, lockKey(key), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	out, renewed := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0).Apply(ctxShort, key, cur)
	assert.False(t, renewed)
	assert.Equal(t, "rt-0", out.Token(ticket.TokenRefresh))
	assert.Equal(t, int32(0), te.calls.Load())
}

// el refresh compartido no depende del ctx de la request que lo disparó
func TestGuard_RefreshSurvivesCallerCancel(t *testing.T) {
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(context.Background(), staleTicket(te.srv.URL))
	require.NoError(t, err)
	cur, err := store.Retrieve(context.Background(), key)
	require.NoError(t, err)

	// el endpoint tarda 20ms; la request se corta antes
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	g := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0)
	out, _ := g.Apply(ctx, key, cur)
	require.NotNil(t, out)

	require.Eventually(t, func() bool {
		persisted, err := store.Retrieve(context.Background(), key)
		return err == nil && persisted.Token(ticket.TokenRefresh) == "rt-1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), te.calls.Load())
}
