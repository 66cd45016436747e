package account

import (
	"context"
	"strings"

	"github.com/dropDatabas3/accountlink/internal/audit"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// AssignRoleCommand asigna Role a UserID. Sólo Admin.
type AssignRoleCommand struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (AssignRoleCommand) RequestType() string { return "admin.assign_role" }

type AssignRoleResponse struct {
	dispatch.Response
	UserID string   `json:"user_id,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

var knownRoles = map[string]string{
	strings.ToLower(repository.RoleUser):  repository.RoleUser,
	strings.ToLower(repository.RoleAdmin): repository.RoleAdmin,
}

func (s *service) validateAssignRole(ctx context.Context, c AssignRoleCommand, u dispatch.CurrentUser) AssignRoleResponse {
	var r AssignRoleResponse
	if msg := roleError(u, repository.RoleAdmin); msg != "" {
		r.AddError(msg)
		return r
	}
	if strings.TrimSpace(c.UserID) == "" {
		r.AddError(MsgUserRequired)
	}
	if _, ok := knownRoles[strings.ToLower(strings.TrimSpace(c.Role))]; !ok {
		r.AddError(MsgUnknownRole)
	}
	if len(r.Errors) > 0 {
		return r
	}
	if _, err := s.Store.GetUserByID(ctx, c.UserID); repository.IsNotFound(err) {
		r.AddError(MsgUserNotFound)
	}
	return r
}

// assignRole invalida el cache de roles del usuario afectado; sus claims se
// actualizan en su próxima request.
func (s *service) assignRole(ctx context.Context, c AssignRoleCommand, u dispatch.CurrentUser) (AssignRoleResponse, error) {
	role := knownRoles[strings.ToLower(strings.TrimSpace(c.Role))]
	if err := s.Store.AssignRole(ctx, c.UserID, role); err != nil {
		return AssignRoleResponse{}, err
	}
	if s.Roles != nil {
		s.Roles.Invalidate(ctx, c.UserID)
	}
	roles, err := s.Store.GetRolesForUser(ctx, c.UserID)
	if err != nil {
		return AssignRoleResponse{}, err
	}
	audit.Log(ctx, audit.RoleAssigned, logger.UserID(c.UserID), logger.String("role", role), logger.String("by", u.UserID))
	return AssignRoleResponse{UserID: c.UserID, Roles: roles}, nil
}

// AdminSecretQuery es la página protegida por rol Admin.
type AdminSecretQuery struct{}

func (AdminSecretQuery) RequestType() string { return "admin.secret" }

type AdminSecretResponse struct {
	dispatch.Response
	Message string `json:"message,omitempty"`
}

func validateAdminSecret(ctx context.Context, _ AdminSecretQuery, u dispatch.CurrentUser) AdminSecretResponse {
	var r AdminSecretResponse
	if msg := roleError(u, repository.RoleAdmin); msg != "" {
		r.AddError(msg)
	}
	return r
}

func adminSecret(ctx context.Context, _ AdminSecretQuery, u dispatch.CurrentUser) (AdminSecretResponse, error) {
	return AdminSecretResponse{Message: "Only administrators can read this."}, nil
}
