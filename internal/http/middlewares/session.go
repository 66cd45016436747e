package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/session"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// RoleSource es roles.Cache.
type RoleSource interface {
	RolesFor(ctx context.Context, userID string) ([]string, error)
}

// WithSession resuelve la cookie de sesión (con refresh y renovación
// deslizante) y deja Session, Principal y CurrentUser en el contexto.
// Los claims de rol se reemplazan por los del cache de roles, así un cambio
// de roles se ve en la siguiente request. Sin sesión la request sigue anónima.
func WithSession(mgr *session.Manager, roles RoleSource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			s, err := mgr.Authenticate(ctx, w, r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logger.From(ctx).Warn("session lookup failed", logger.Component("session"), logger.Err(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			if roles != nil {
				if uid := s.UserID(); uid != "" {
					rs, err := roles.RolesFor(ctx, uid)
					if err != nil {
						logger.From(ctx).Warn("role lookup failed", logger.UserID(uid), logger.Err(err))
					} else {
						s.Ticket.Principal.Replace(ticket.ClaimRole, rs...)
					}
				}
			}

			u := dispatch.FromClaims(&s.Ticket.Principal)
			noteUser(r, u)
			ctx = session.WithSession(ctx, s)
			ctx = withPrincipal(ctx, &s.Ticket.Principal)
			ctx = dispatch.WithCurrentUser(ctx, u)
			ctx = logger.With(ctx, logger.UserID(u.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
