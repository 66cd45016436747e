package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestChain_Order(t *testing.T) {
	var got []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	serve(Chain(okHandler, mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = serve(h, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	for _, bad := range []string{strings.Repeat("x", 200), "has space", "line\nbreak"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		serve(h, req)
		assert.Len(t, seen, 36, bad)
	}
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	abort := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(abort, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func withUser(r *http.Request, u dispatch.CurrentUser) *http.Request {
	return r.WithContext(dispatch.WithCurrentUser(r.Context(), u))
}

func TestRequireUser(t *testing.T) {
	h := RequireUser("/account/login")(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/account/profile?x=1", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/account/login?returnUrl=%2Faccount%2Fprofile%3Fx%3D1", rec.Header().Get("Location"))

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/account/tenant", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, withUser(httptest.NewRequest(http.MethodGet, "/account/profile", nil), dispatch.CurrentUser{Authenticated: true, UserID: "u1"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("Admin")(okHandler)
	req := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/admin/secret", nil) }

	assert.Equal(t, http.StatusUnauthorized, serve(h, req()).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, withUser(req(), dispatch.CurrentUser{Authenticated: true, UserID: "u1", Roles: []string{"User"}})).Code)
	assert.Equal(t, http.StatusOK, serve(h, withUser(req(), dispatch.CurrentUser{Authenticated: true, UserID: "u1", Roles: []string{"User", "Admin"}})).Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit(t *testing.T) {
	h := WithRateLimit(rate.NewMemoryLimiter("t:", 2, time.Hour), nil)(okHandler)
	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/account/login/github", nil)
		r.RemoteAddr = ip + ":5555"
		return r
	}

	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1")).Code)
	rec := serve(h, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(h, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// otra IP tiene su propio contador
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.2")).Code)

	// si el limiter falla se deja pasar
	open := WithRateLimit(failingLimiter{}, nil)(okHandler)
	assert.Equal(t, http.StatusOK, serve(open, req("10.0.0.1")).Code)

	// sin limiter no hace nada
	assert.Equal(t, http.StatusOK, serve(WithRateLimit(nil, nil)(okHandler), req("10.0.0.1")).Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:1234"
	assert.Equal(t, "192.0.2.10", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestWithCORS(t *testing.T) {
	h := WithCORS([]string{"https://app.example.com/"})(okHandler)

	pre := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	pre.Header.Set("Origin", "https://app.example.com")
	pre.Header.Set("Access-Control-Request-Method", "GET")
	rec := serve(h, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rec = serve(h, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithSecurityHeadersAndNoStore(t *testing.T) {
	h := Chain(okHandler, WithSecurityHeaders(), WithNoStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := serve(h, req)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStack_SkipsNil(t *testing.T) {
	var got []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Stack(mark("outer"), nil, mark("inner"))(okHandler)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"outer", "inner"}, got)
}
