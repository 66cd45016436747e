package repository

import "time"

// Tenant agrupa usuarios. Un usuario pertenece a un único tenant a la vez y
// la reasignación es siempre explícita (CreateTenantForUser).
type Tenant struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	LastModified time.Time
}
