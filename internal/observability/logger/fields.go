package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// IDENTIDAD
// =================================================================================

// UserID es el id interno del usuario, nunca el subject del provider.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// Provider es el nombre configurado del identity provider.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Subject es el "sub" emitido por el provider.
func Subject(v string) zap.Field { return zap.String("subject", v) }

// EmailMasked loguea un email enmascarado ("jo***@example.com").
func EmailMasked(v string) zap.Field { return zap.String("email_masked", MaskEmail(v)) }

// TicketKey loguea solo un prefijo de la key de sesión.
func TicketKey(v string) zap.Field {
	if len(v) > 6 {
		v = v[:6] + "…"
	}
	return zap.String("ticket", v)
}

// Outcome describe el resultado de un flujo (signin, link_success, link_error...).
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// =================================================================================
// SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Time(key string, v time.Time) zap.Field { return zap.Time(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }

// MaskEmail muestra los dos primeros caracteres y el dominio.
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := -1
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
