package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/session"
)

// WithBearer autentica el header Authorization vía SchemeRouter. Sin header
// la request sigue anónima; un header inválido corta con 401.
func WithBearer(resolver *session.BearerResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			p, err := resolver.Resolve(ctx, r)
			if err != nil {
				logger.From(ctx).Info("bearer rejected", logger.Component("bearer"), logger.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}
			u := dispatch.FromClaims(p)
			noteUser(r, u)
			ctx = withPrincipal(ctx, p)
			ctx = dispatch.WithCurrentUser(ctx, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
