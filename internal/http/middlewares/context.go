package middlewares

import (
	"context"

	"github.com/dropDatabas3/accountlink/internal/ticket"
)

type ctxKey string

const ctxRequestIDKey ctxKey = "request_id"

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *ticket.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal devuelve el principal autenticado (sesión o bearer) o nil.
func GetPrincipal(ctx context.Context) *ticket.Principal {
	p, _ := ctx.Value(principalKey{}).(*ticket.Principal)
	return p
}
