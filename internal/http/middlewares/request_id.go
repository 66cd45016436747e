package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

const requestIDHeader = "X-Request-ID"

// validRequestID acepta ids de un proxy upstream: 1..128 chars de
// [A-Za-z0-9._:-]. Cualquier otra cosa se reemplaza para no ensuciar logs.
func validRequestID(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// WithRequestID propaga el X-Request-ID entrante o genera un uuid, lo
// devuelve en la respuesta y lo deja en el contexto (y en el logger).
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(requestIDHeader)
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, rid)
			ctx := setRequestID(r.Context(), rid)
			ctx = logger.With(ctx, logger.RequestID(rid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
