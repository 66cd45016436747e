package dispatch

import (
	"context"

	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// CurrentUser se deriva una sola vez por request de los claims de la sesión
// y no se vuelve a consultar durante la request.
type CurrentUser struct {
	Authenticated bool
	UserID        string
	TenantID      string
	Roles         []string
}

// FromClaims construye el CurrentUser. Sin principal o sin sub es anónimo.
func FromClaims(p *ticket.Principal) CurrentUser {
	if p == nil {
		return CurrentUser{}
	}
	sub := p.FindFirst(ticket.ClaimSubject)
	if sub == "" {
		return CurrentUser{}
	}
	return CurrentUser{
		Authenticated: true,
		UserID:        sub,
		TenantID:      p.FindFirst(ticket.ClaimTenant),
		Roles:         p.FindAll(ticket.ClaimRole),
	}
}

func (u CurrentUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithCurrentUser(ctx context.Context, u CurrentUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUserFrom devuelve el usuario de la request o uno anónimo.
func CurrentUserFrom(ctx context.Context) CurrentUser {
	u, _ := ctx.Value(ctxKey{}).(CurrentUser)
	return u
}
