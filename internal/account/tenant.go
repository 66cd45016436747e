package account

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dropDatabas3/accountlink/internal/audit"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// CreateTenantCommand crea un tenant y mueve al usuario actual a él.
// Es la única forma de cambiar el tenant de un usuario.
type CreateTenantCommand struct {
	Name string `json:"name"`
}

func (CreateTenantCommand) RequestType() string { return "account.create_tenant" }

type CreateTenantResponse struct {
	dispatch.Response
	TenantID string `json:"tenant_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

func validateCreateTenant(ctx context.Context, c CreateTenantCommand, u dispatch.CurrentUser) CreateTenantResponse {
	var r CreateTenantResponse
	if msg := authError(u); msg != "" {
		r.AddError(msg)
		return r
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		r.AddError(MsgTenantName)
	}
	return r
}

func (s *service) createTenant(ctx context.Context, c CreateTenantCommand, u dispatch.CurrentUser) (CreateTenantResponse, error) {
	t, err := s.Store.CreateTenantForUser(ctx, u.UserID, strings.TrimSpace(c.Name))
	if err != nil {
		return CreateTenantResponse{}, err
	}
	audit.Log(ctx, audit.TenantCreated, logger.UserID(u.UserID), logger.TenantID(t.ID))
	return CreateTenantResponse{TenantID: t.ID, Name: t.Name}, nil
}
