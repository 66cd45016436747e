package repository

import "time"

// User representa una cuenta interna. Un usuario tiene cero o más
// ExternalLogins y cero o más roles.
type User struct {
	ID           string
	TenantID     string
	Email        string // no es único global; se usa como soft-match en login
	DisplayName  string
	IsActive     bool
	CreatedAt    time.Time
	LastModified time.Time
}

// Role names del sistema.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Role es una entrada del catálogo de roles.
type Role struct {
	ID   string
	Name string
}
