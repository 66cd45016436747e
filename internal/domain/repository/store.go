package repository

import "context"

// Store es el colaborador de persistencia del core.
type Store interface {
	// GetUserByID retorna ErrNotFound si no existe.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail compara case-insensitive. Retorna ErrNotFound si no existe.
	// Si hay más de un usuario con el mismo email devuelve el más antiguo.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetExternalLoginForProvider retorna ErrNotFound si el par no está asociado.
	GetExternalLoginForProvider(ctx context.Context, provider, subject string) (*ExternalLogin, error)

	// GetExternalLoginsForUser lista los logins de un usuario (orden de creación).
	GetExternalLoginsForUser(ctx context.Context, userID string) ([]ExternalLogin, error)

	// AddExternalLogin asocia (provider, subject) al usuario.
	// Retorna ErrConflict si el par ya existe, sea cual sea su dueño.
	AddExternalLogin(ctx context.Context, userID, provider, subject string) (*ExternalLogin, error)

	// RemoveExternalLogin elimina la asociación loginID del usuario.
	// Retorna ErrNotFound si no existe para ese usuario.
	RemoveExternalLogin(ctx context.Context, userID, loginID string) error

	// CreateUserWithRoles crea el usuario y sus asignaciones de rol.
	// Completa ID/CreatedAt/LastModified si vienen vacíos.
	CreateUserWithRoles(ctx context.Context, user *User, roles []string) (*User, error)

	// GetRolesForUser retorna los nombres de rol asignados.
	GetRolesForUser(ctx context.Context, userID string) ([]string, error)

	// AssignRole asigna un rol (idempotente).
	AssignRole(ctx context.Context, userID, role string) error

	// GetTenantByID retorna ErrNotFound si no existe.
	GetTenantByID(ctx context.Context, id string) (*Tenant, error)

	// CreateTenantForUser crea un tenant y reasigna el usuario a él.
	CreateTenantForUser(ctx context.Context, userID, name string) (*Tenant, error)
}
