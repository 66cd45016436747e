// Package linking decide qué hacer cuando vuelve un provider: login normal,
// vinculación de un login adicional o error. Es una función de sus entradas
// más las llamadas al store; no toca la request HTTP.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/accountlink/internal/audit"
	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// LinkCallbackPath es el destino de todos los Redirect del modo linking.
const LinkCallbackPath = "/account/link-callback"

// AuthenticationType del principal emitido.
const AuthenticationType = "accountlink"

const (
	MsgLinked        = "The login was linked to your account."
	MsgAlreadyLinked = "This login is already linked to another account."
)

var (
	ErrMissingClaims = errors.New("linking: provider assertion lacks sub or email")
	ErrUserInactive  = errors.New("linking: user is inactive")
	ErrLastLogin     = errors.New("linking: cannot remove the last login")
	ErrLoginNotFound = errors.New("linking: provider is not linked to this user")
)

// RequestState es el estado ambiente de la request que completó el round-trip.
type RequestState struct {
	Linking      bool
	TargetUserID string
}

// linkingMode requiere el flag y un usuario destino.
func (s RequestState) linkingMode() bool {
	return s.Linking && s.TargetUserID != ""
}

// RoleResolver es el cache de roles (roles.Cache).
type RoleResolver interface {
	RolesFor(ctx context.Context, userID string) ([]string, error)
	Invalidate(ctx context.Context, userID string)
}

// Deps del coordinador.
type Deps struct {
	Store      repository.Store
	Roles      RoleResolver
	AdminEmail string
	// Locks serializa Unlink por usuario. Opcional.
	Locks cache.Client
}

type Coordinator struct {
	store      repository.Store
	roles      RoleResolver
	adminEmail string
	locks      cache.Client
}

func NewCoordinator(d Deps) *Coordinator {
	return &Coordinator{
		store:      d.Store,
		roles:      d.Roles,
		adminEmail: strings.TrimSpace(d.AdminEmail),
		locks:      d.Locks,
	}
}

// HandleProviderCallback produce siempre un Outcome: nunca descarta la request.
func (c *Coordinator) HandleProviderCallback(ctx context.Context, a providers.Assertion, st RequestState) Outcome {
	log := logger.From(ctx).With(logger.Component("linking"), logger.Provider(a.Provider))

	if strings.TrimSpace(a.Subject) == "" || strings.TrimSpace(a.Email) == "" {
		log.Error("assertion missing required claims", logger.Bool("has_sub", a.Subject != ""), logger.Bool("has_email", a.Email != ""))
		return Fail(ErrMissingClaims)
	}

	if st.linkingMode() {
		out := c.link(ctx, a, st.TargetUserID)
		log.Info("link attempt", logger.UserID(st.TargetUserID), logger.Outcome(outcomeLabel(out)))
		return out
	}
	out := c.login(ctx, a)
	if out.Kind == KindFail {
		log.Warn("login failed", logger.EmailMasked(a.Email), logger.Err(out.Err))
	} else {
		log.Info("login resolved", logger.UserID(out.UserID))
	}
	return out
}

func outcomeLabel(o Outcome) string {
	if o.Kind == KindRedirect {
		return string(o.Link)
	}
	return o.Kind.String()
}

func (c *Coordinator) link(ctx context.Context, a providers.Assertion, target string) Outcome {
	existing, err := c.store.GetExternalLoginForProvider(ctx, a.Provider, a.Subject)
	switch {
	case err == nil:
		return linkOwnerOutcome(existing.UserID, target)
	case !repository.IsNotFound(err):
		return Fail(fmt.Errorf("linking: lookup login: %w", err))
	}

	if _, err := c.store.AddExternalLogin(ctx, target, a.Provider, a.Subject); err != nil {
		if !repository.IsConflict(err) {
			return Fail(fmt.Errorf("linking: add login: %w", err))
		}
		// otra request lo creó entre el lookup y el insert
		owner, rerr := c.store.GetExternalLoginForProvider(ctx, a.Provider, a.Subject)
		if rerr != nil {
			return Fail(fmt.Errorf("linking: re-read owner: %w", rerr))
		}
		return linkOwnerOutcome(owner.UserID, target)
	}
	audit.Log(ctx, audit.LoginLinked, logger.UserID(target), logger.Provider(a.Provider), logger.Subject(a.Subject))
	return Redirect(LinkCallbackPath, MsgLinked, LinkSuccess)
}

func linkOwnerOutcome(owner, target string) Outcome {
	if owner == target {
		return Redirect(LinkCallbackPath, MsgLinked, LinkSuccess)
	}
	return Redirect(LinkCallbackPath, MsgAlreadyLinked, LinkError)
}

func (c *Coordinator) login(ctx context.Context, a providers.Assertion) Outcome {
	user, hasLogin, err := c.resolveUser(ctx, a)
	if err != nil {
		return Fail(err)
	}
	if !user.IsActive {
		return Fail(ErrUserInactive)
	}

	if !hasLogin {
		if _, err := c.store.AddExternalLogin(ctx, user.ID, a.Provider, a.Subject); err != nil {
			if !repository.IsConflict(err) {
				return Fail(fmt.Errorf("linking: add login: %w", err))
			}
			owner, rerr := c.store.GetExternalLoginForProvider(ctx, a.Provider, a.Subject)
			if rerr != nil {
				return Fail(fmt.Errorf("linking: re-read owner: %w", rerr))
			}
			if owner.UserID != user.ID {
				if user, err = c.store.GetUserByID(ctx, owner.UserID); err != nil {
					return Fail(fmt.Errorf("linking: load owner: %w", err))
				}
				if !user.IsActive {
					return Fail(ErrUserInactive)
				}
			}
		}
	}

	roles, err := c.roles.RolesFor(ctx, user.ID)
	if err != nil {
		return Fail(err)
	}
	return SignIn(user.ID, BuildPrincipal(user, roles, a.Provider))
}

// resolveUser: login existente → usuario por email → usuario nuevo.
func (c *Coordinator) resolveUser(ctx context.Context, a providers.Assertion) (*repository.User, bool, error) {
	existing, err := c.store.GetExternalLoginForProvider(ctx, a.Provider, a.Subject)
	if err == nil {
		u, err := c.store.GetUserByID(ctx, existing.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("linking: load owner: %w", err)
		}
		return u, true, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, fmt.Errorf("linking: lookup login: %w", err)
	}

	u, err := c.store.GetUserByEmail(ctx, a.Email)
	if err == nil {
		return u, false, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, fmt.Errorf("linking: lookup email: %w", err)
	}

	roles := []string{repository.RoleUser}
	if c.adminEmail != "" && strings.EqualFold(a.Email, c.adminEmail) {
		roles = append(roles, repository.RoleAdmin)
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = a.Email
	}
	u, err = c.store.CreateUserWithRoles(ctx, &repository.User{
		Email:       a.Email,
		DisplayName: name,
		IsActive:    true,
	}, roles)
	if err != nil {
		return nil, false, fmt.Errorf("linking: create user: %w", err)
	}
	c.roles.Invalidate(ctx, u.ID)
	audit.Log(ctx, audit.UserCreated,
		logger.UserID(u.ID), logger.Provider(a.Provider), logger.EmailMasked(u.Email), logger.Any("roles", roles))
	return u, false, nil
}

// BuildPrincipal arma los claims de sesión. sub es siempre el id interno.
func BuildPrincipal(u *repository.User, roles []string, provider string) ticket.Principal {
	p := ticket.Principal{AuthenticationType: AuthenticationType}
	add := func(t, v string) {
		if v != "" {
			p.Claims = append(p.Claims, ticket.Claim{Type: t, Value: v})
		}
	}
	add(ticket.ClaimSubject, u.ID)
	add(ticket.ClaimEmail, u.Email)
	add(ticket.ClaimName, u.DisplayName)
	add(ticket.ClaimTenant, u.TenantID)
	for _, r := range roles {
		add(ticket.ClaimRole, r)
	}
	add(ticket.ClaimProvider, provider)
	return p
}

// Unlink quita el login de provider del usuario. Rechaza quitar el último.
func (c *Coordinator) Unlink(ctx context.Context, userID, provider string) error {
	if c.locks != nil {
		l, err := cache.AcquireLock(ctx, c.locks, "user-lock:"+userID, 10*time.Second, 5*time.Second, 50*time.Millisecond)
		if err != nil {
			return fmt.Errorf("linking: lock: %w", err)
		}
		defer func() { _ = l.Release(context.WithoutCancel(ctx)) }()
	}

	logins, err := c.store.GetExternalLoginsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("linking: list logins: %w", err)
	}
	var target *repository.ExternalLogin
	for i := range logins {
		if logins[i].Provider == provider {
			target = &logins[i]
			break
		}
	}
	if target == nil {
		return ErrLoginNotFound
	}
	if len(logins) <= 1 {
		return ErrLastLogin
	}
	if err := c.store.RemoveExternalLogin(ctx, userID, target.ID); err != nil {
		if repository.IsNotFound(err) {
			return ErrLoginNotFound
		}
		return fmt.Errorf("linking: remove login: %w", err)
	}
	audit.Log(ctx, audit.LoginUnlinked, logger.UserID(userID), logger.Provider(provider))
	return nil
}
