// Package account contiene los comandos y queries de cuenta que corren por el
// dispatch pipeline: perfil, unlink, tenant, roles y la página de admin.
package account

import (
	"context"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	"github.com/dropDatabas3/accountlink/internal/providers"
)

// Mensajes de validación visibles para el usuario.
const (
	MsgNotAuthenticated = "You must be signed in."
	MsgForbidden        = "You are not allowed to perform this action."
	MsgProviderRequired = "Provider is required."
	MsgUnknownProvider  = "Unknown provider."
	MsgLastLogin        = "You cannot remove your last login."
	MsgNotLinked        = "That provider is not linked to your account."
	MsgTenantName       = "Tenant name is required (max 100 characters)."
	MsgUnknownRole      = "Unknown role."
	MsgUserRequired     = "User id is required."
	MsgUserNotFound     = "User not found."
)

// Unlinker es linking.Coordinator.
type Unlinker interface {
	Unlink(ctx context.Context, userID, provider string) error
}

// RoleInvalidator es roles.Cache.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Deps del paquete.
type Deps struct {
	Store     repository.Store
	Providers *providers.Registry
	Unlinker  Unlinker
	Roles     RoleInvalidator
}

type service struct {
	Deps
}

// Register da de alta todos los handlers en reg.
func Register(reg *dispatch.Registry, d Deps) error {
	s := &service{Deps: d}

	if err := dispatch.Register(reg, dispatch.Handler[GetProfileQuery, GetProfileResponse]{
		Validator: validateGetProfile,
		Processor: s.getProfile,
	}); err != nil {
		return err
	}
	if err := dispatch.Register(reg, dispatch.Handler[UnlinkProviderCommand, UnlinkProviderResponse]{
		Validator: s.validateUnlink,
		Processor: s.unlink,
	}); err != nil {
		return err
	}
	if err := dispatch.Register(reg, dispatch.Handler[CreateTenantCommand, CreateTenantResponse]{
		Validator: validateCreateTenant,
		Processor: s.createTenant,
	}); err != nil {
		return err
	}
	if err := dispatch.Register(reg, dispatch.Handler[AssignRoleCommand, AssignRoleResponse]{
		Validator: s.validateAssignRole,
		Processor: s.assignRole,
	}); err != nil {
		return err
	}
	return dispatch.Register(reg, dispatch.Handler[AdminSecretQuery, AdminSecretResponse]{
		Validator: validateAdminSecret,
		Processor: adminSecret,
	})
}

// authError devuelve el mensaje de rechazo o "" si el usuario está autenticado.
func authError(u dispatch.CurrentUser) string {
	if !u.Authenticated {
		return MsgNotAuthenticated
	}
	return ""
}

// roleError además exige el rol.
func roleError(u dispatch.CurrentUser, role string) string {
	if msg := authError(u); msg != "" {
		return msg
	}
	if !u.HasRole(role) {
		return MsgForbidden
	}
	return ""
}
