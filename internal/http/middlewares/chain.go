package middlewares

import "net/http"

// Middleware decora un http.Handler. Es compatible con chi.Router.Use.
type Middleware func(http.Handler) http.Handler

// Chain envuelve h; el primer middleware es el más externo.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	return Stack(mws...)(h)
}

// Stack compone varios middlewares en uno, en el mismo orden que Chain.
// Los nil se ignoran (ej. un limiter deshabilitado).
func Stack(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				h = mws[i](h)
			}
		}
		return h
	}
}
