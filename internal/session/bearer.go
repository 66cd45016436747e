package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	"github.com/dropDatabas3/accountlink/internal/linking"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/scheme"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// ErrUnknownIdentity: el token es válido pero su (provider, sub) no está
// vinculado a ningún usuario. Los bearer nunca crean usuarios.
var ErrUnknownIdentity = errors.New("session: bearer identity not linked to any user")

// BearerResolver convierte un header Authorization en un principal:
// SchemeRouter elige el provider, el provider verifica, y el login externo
// resuelve el usuario interno.
type BearerResolver struct {
	router   *scheme.Router
	registry *providers.Registry
	store    repository.Store
	roles    linking.RoleResolver
}

func NewBearerResolver(router *scheme.Router, reg *providers.Registry, store repository.Store, roles linking.RoleResolver) *BearerResolver {
	return &BearerResolver{router: router, registry: reg, store: store, roles: roles}
}

// Resolve devuelve errores de scheme.* para fallos de protocolo.
func (b *BearerResolver) Resolve(ctx context.Context, r *http.Request) (*ticket.Principal, error) {
	name, err := b.router.Select(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	p, err := b.registry.Get(name)
	if err != nil {
		return nil, err
	}
	raw, _ := scheme.BearerToken(r.Header.Get("Authorization"))
	a, err := p.VerifyBearer(ctx, raw)
	if err != nil {
		return nil, err
	}
	if a.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", providers.ErrInvalidToken)
	}

	login, err := b.store.GetExternalLoginForProvider(ctx, name, a.Subject)
	if repository.IsNotFound(err) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, err
	}
	u, err := b.store.GetUserByID(ctx, login.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, linking.ErrUserInactive
	}
	roles, err := b.roles.RolesFor(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	p2 := linking.BuildPrincipal(u, roles, name)
	p2.AuthenticationType = "bearer"
	return &p2, nil
}
