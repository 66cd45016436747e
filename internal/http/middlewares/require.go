package middlewares

import (
	"net/http"
	"net/url"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/http/errors"
)

// RequireUser exige un CurrentUser autenticado. Si loginPath no está vacío,
// los GET anónimos se redirigen ahí con returnUrl; el resto recibe 401.
func RequireUser(loginPath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dispatch.CurrentUserFrom(r.Context()).Authenticated {
				next.ServeHTTP(w, r)
				return
			}
			if loginPath != "" && r.Method == http.MethodGet {
				http.Redirect(w, r, loginPath+"?returnUrl="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}
			errors.WriteError(w, errors.ErrUnauthorized)
		})
	}
}

// RequireRole exige el rol exacto en el CurrentUser.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := dispatch.CurrentUserFrom(r.Context())
			if !u.Authenticated {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if !u.HasRole(role) {
				errors.WriteError(w, errors.ErrForbidden.WithDetail("role "+role+" required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
