package logger

import (
	"context"

	"go.uber.org/zap"
)

type scopedKey struct{}

// ToContext guarda l como logger de la request.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, scopedKey{}, l)
}

// From devuelve el logger de la request, o el global si no hay uno.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, _ := ctx.Value(scopedKey{}).(*zap.Logger); l != nil {
			return l
		}
	}
	return L()
}

// With agrega campos al logger de la request y lo vuelve a guardar.
// Los middlewares lo usan a medida que conocen request_id, usuario, etc.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return ToContext(ctx, From(ctx).With(fields...))
}
