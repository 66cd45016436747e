// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	accountctrl "github.com/dropDatabas3/accountlink/internal/http/controllers/account"
	adminctrl "github.com/dropDatabas3/accountlink/internal/http/controllers/admin"
	"github.com/dropDatabas3/accountlink/internal/http/controllers/api"
	"github.com/dropDatabas3/accountlink/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	mw "github.com/dropDatabas3/accountlink/internal/http/middlewares"
	"github.com/dropDatabas3/accountlink/internal/rate"
	"github.com/dropDatabas3/accountlink/internal/session"
)

// Deps contiene todo lo que el router necesita.
type Deps struct {
	Account *accountctrl.Controllers
	Admin   *adminctrl.Controllers
	Health  *health.HealthController

	Sessions *session.Manager
	Roles    mw.RoleSource
	Bearer   *session.BearerResolver

	// LoginLimiter es opcional; limita challenge y callback.
	LoginLimiter rate.Limiter
	Metrics      http.Handler
	CORSOrigins  []string
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// toda ruta con cookie de sesión: sin cache y con el usuario resuelto
	sessionStack := mw.Stack(mw.WithNoStore(), mw.WithSession(d.Sessions, d.Roles))
	requireUser := mw.RequireUser(accountctrl.LoginPath)

	r.Route("/account", func(r chi.Router) {
		r.Use(sessionStack)
		a := d.Account

		r.Get("/login", a.ListProviders)
		r.Group(func(r chi.Router) {
			r.Use(mw.WithRateLimit(d.LoginLimiter, mw.IPPathRateKey))
			r.Get("/login/{provider}", a.Login)
			r.Get("/callback/{provider}", a.Callback)
		})
		r.Get("/link-callback", a.LinkCallback)
		r.Get("/logout", a.Logout)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/postlogin", a.PostLogin)
			r.Get("/profile", a.Profile)
			r.Get("/link/{provider}", a.Link)
			r.Get("/unlink/{provider}", a.Unlink)
			r.Post("/tenant", a.CreateTenant)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(sessionStack, mw.RequireRole(repository.RoleAdmin))
		r.Get("/secret", d.Admin.Secret)
		r.Post("/users/{id}/roles", d.Admin.AssignRole)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.WithNoStore())
		if d.Bearer != nil {
			r.Use(mw.WithBearer(d.Bearer))
		}
		r.Get("/me", api.Me)
	})

	return r
}
