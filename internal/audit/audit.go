// Package audit registra los cambios sobre identidades y permisos como logs
// estructurados en el canal "audit".
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

type Event string

const (
	UserCreated   Event = "user.created"
	LoginLinked   Event = "login.linked"
	LoginUnlinked Event = "login.unlinked"
	RoleAssigned  Event = "role.assigned"
	TenantCreated Event = "tenant.created"
)

// Log emite el evento con el logger del contexto (trae request_id y user_id
// si pasó por el middleware).
func Log(ctx context.Context, ev Event, fields ...zap.Field) {
	fields = append(fields, zap.String("event", string(ev)))
	logger.From(ctx).Named("audit").Info(string(ev), fields...)
}
