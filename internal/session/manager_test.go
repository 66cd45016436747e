package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

func newManager(t *testing.T) (*Manager, *ticket.Store) {
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	g := NewGuard(store, ticket.NewRefreshClient(nil), c, 0)
	return NewManager(store, g, CookieConfig{Name: "sid", SameSite: "Strict"}, 20*time.Minute), store
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/account/profile", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestManager_SignInLoadSignOut(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	w := httptest.NewRecorder()
	s, err := m.SignIn(ctx, w, &ticket.Ticket{Principal: ticket.Principal{Claims: []ticket.Claim{{Type: ticket.ClaimSubject, Value: "u1"}}}})
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, s.Key, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	loaded, err := m.Authenticate(ctx, httptest.NewRecorder(), requestWith(cookies))
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID())

	out := httptest.NewRecorder()
	require.NoError(t, m.SignOut(ctx, out, requestWith(cookies)))
	del := out.Result().Cookies()
	require.Len(t, del, 1)
	assert.Equal(t, -1, del[0].MaxAge)

	_, err = m.Load(ctx, requestWith(cookies))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_NoCookie(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Authenticate(context.Background(), httptest.NewRecorder(), requestWith(nil))
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, m.SignOut(context.Background(), httptest.NewRecorder(), requestWith(nil)))
}

func TestManager_TouchSlidesAfterHalfWindow(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	s, err := m.SignIn(ctx, httptest.NewRecorder(), &ticket.Ticket{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Touch(ctx, w, s, false)
	assert.Empty(t, w.Result().Cookies())

	base := time.Now().UTC()
	m.now = func() time.Time { return base.Add(11 * time.Minute) }
	w = httptest.NewRecorder()
	m.Touch(ctx, w, s, false)
	require.Len(t, w.Result().Cookies(), 1)

	got, err := store.Retrieve(ctx, s.Key)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(31*time.Minute), got.ExpiresUTC, 5*time.Second)
}

// otra instancia refresca entre el Load de esta request y su Touch
func TestManager_TouchKeepsConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(ctx, staleTicket(te.srv.URL))
	require.NoError(t, err)
	m := NewManager(store, NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0), CookieConfig{Name: "sid"}, 20*time.Minute)

	loaded, err := store.Retrieve(ctx, key)
	require.NoError(t, err)

	other := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0)
	cur, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	_, renewed := other.Apply(ctx, key, cur)
	require.True(t, renewed)

	s := &Session{Key: key, Ticket: loaded}
	w := httptest.NewRecorder()
	m.Touch(ctx, w, s, true)
	require.Len(t, w.Result().Cookies(), 1)

	persisted, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", persisted.Token(ticket.TokenRefresh))
	assert.Equal(t, "at-1", persisted.Token(ticket.TokenAccess))
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), persisted.ExpiresUTC, 5*time.Second)
	assert.Equal(t, "rt-1", s.Ticket.Token(ticket.TokenRefresh))
	assert.Equal(t, int32(1), te.calls.Load())
}

func TestManager_UpdateKeepsConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	te := newTokenEndpoint(t)
	c := cache.NewMemory("")
	store := newTicketStore(t, c)
	key, err := store.Store(ctx, staleTicket(te.srv.URL))
	require.NoError(t, err)
	m := NewManager(store, NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0), CookieConfig{Name: "sid"}, 20*time.Minute)

	loaded, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	cur, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	_, renewed := NewGuard(store, ticket.NewRefreshClient(te.srv.Client()), c, 0).Apply(ctx, key, cur)
	require.True(t, renewed)

	s := &Session{Key: key, Ticket: loaded}
	require.NoError(t, m.Update(ctx, s, func(t *ticket.Ticket) {
		t.Principal.Replace(ticket.ClaimTenant, "tenant-9")
	}))

	persisted, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", persisted.Token(ticket.TokenRefresh))
	assert.Equal(t, "tenant-9", persisted.Principal.FindFirst(ticket.ClaimTenant))
	assert.Equal(t, "tenant-9", s.Ticket.Principal.FindFirst(ticket.ClaimTenant))
}

func TestManager_UpdateMissingTicket(t *testing.T) {
	m, _ := newManager(t)
	err := m.Update(context.Background(), &Session{Key: "gone", Ticket: &ticket.Ticket{}}, func(*ticket.Ticket) {})
	assert.ErrorIs(t, err, ErrNoSession)
}
