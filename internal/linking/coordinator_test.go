package linking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/roles"
	"github.com/dropDatabas3/accountlink/internal/store/memory"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

const adminEmail = "Admin@Example.com"

func newCoordinator(t *testing.T) (*Coordinator, *memory.Store) {
	t.Helper()
	st := memory.New()
	c := cache.NewMemory("")
	return NewCoordinator(Deps{
		Store:      st,
		Roles:      roles.NewCache(c, st, time.Minute),
		AdminEmail: adminEmail,
		Locks:      c,
	}), st
}

func assertion(provider, sub, email string) providers.Assertion {
	return providers.Assertion{Provider: provider, Subject: sub, Email: email, Name: "Someone"}
}

func TestLogin_FirstLoginCreatesUser(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)

	out := c.HandleProviderCallback(ctx, assertion("google", "g-1", "bob@example.com"), RequestState{})
	require.Equal(t, KindSignIn, out.Kind, "%v", out.Err)

	assert.Equal(t, out.UserID, out.Principal.FindFirst(ticket.ClaimSubject))
	assert.Equal(t, "google", out.Principal.FindFirst(ticket.ClaimProvider))
	assert.Equal(t, []string{repository.RoleUser}, out.Principal.FindAll(ticket.ClaimRole))

	login, err := st.GetExternalLoginForProvider(ctx, "google", "g-1")
	require.NoError(t, err)
	assert.Equal(t, out.UserID, login.UserID)
}

func TestLogin_AdminBootstrap(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)

	out := c.HandleProviderCallback(ctx, assertion("google", "g-admin", "admin@example.COM"), RequestState{})
	require.Equal(t, KindSignIn, out.Kind)

	got, err := st.GetRolesForUser(ctx, out.UserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{repository.RoleUser, repository.RoleAdmin}, got)
	assert.ElementsMatch(t, []string{repository.RoleUser, repository.RoleAdmin}, out.Principal.FindAll(ticket.ClaimRole))
}

func TestLogin_ExistingLoginReusesUser(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t)

	first := c.HandleProviderCallback(ctx, assertion("google", "g-1", "bob@example.com"), RequestState{})
	second := c.HandleProviderCallback(ctx, assertion("google", "g-1", "bob-renamed@example.com"), RequestState{})
	require.Equal(t, KindSignIn, second.Kind)
	assert.Equal(t, first.UserID, second.UserID)
}

func TestLogin_EmailSoftMatch(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)

	first := c.HandleProviderCallback(ctx, assertion("google", "g-1", "bob@example.com"), RequestState{})
	second := c.HandleProviderCallback(ctx, assertion("github", "gh-9", "BOB@example.com"), RequestState{})
	require.Equal(t, KindSignIn, second.Kind)
	assert.Equal(t, first.UserID, second.UserID)

	logins, err := st.GetExternalLoginsForUser(ctx, first.UserID)
	require.NoError(t, err)
	assert.Len(t, logins, 2)
}

func TestLogin_MissingClaims(t *testing.T) {
	c, _ := newCoordinator(t)
	for _, a := range []providers.Assertion{
		assertion("google", "", "x@example.com"),
		assertion("google", "sub", ""),
	} {
		out := c.HandleProviderCallback(context.Background(), a, RequestState{})
		assert.Equal(t, KindFail, out.Kind)
		assert.ErrorIs(t, out.Err, ErrMissingClaims)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)
	_, err := st.CreateUserWithRoles(ctx, &repository.User{Email: "off@example.com", IsActive: false}, []string{repository.RoleUser})
	require.NoError(t, err)

	out := c.HandleProviderCallback(ctx, assertion("google", "g-off", "off@example.com"), RequestState{})
	assert.Equal(t, KindFail, out.Kind)
	assert.ErrorIs(t, out.Err, ErrUserInactive)
	assert.Equal(t, 0, st.CountExternalLogins("google", "g-off"))
}

func TestLogin_ConcurrentSameIdentity(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)
	owner := c.HandleProviderCallback(ctx, assertion("google", "g-seed", "carol@example.com"), RequestState{})
	require.Equal(t, KindSignIn, owner.Kind)

	var wg sync.WaitGroup
	outs := make([]Outcome, 10)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = c.HandleProviderCallback(ctx, assertion("github", "gh-c", "carol@example.com"), RequestState{})
		}(i)
	}
	wg.Wait()

	for _, o := range outs {
		require.Equal(t, KindSignIn, o.Kind, "%v", o.Err)
		assert.Equal(t, owner.UserID, o.UserID)
	}
	assert.Equal(t, 1, st.CountExternalLogins("github", "gh-c"))
}

func TestLink_AttachIdempotentAndConflict(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)
	alice := c.HandleProviderCallback(ctx, assertion("google", "g-a", "alice@example.com"), RequestState{})
	bob := c.HandleProviderCallback(ctx, assertion("google", "g-b", "bob@example.com"), RequestState{})

	state := RequestState{Linking: true, TargetUserID: alice.UserID}
	out := c.HandleProviderCallback(ctx, assertion("github", "gh-a", "alice@gh.example"), state)
	assert.Equal(t, KindRedirect, out.Kind)
	assert.Equal(t, LinkCallbackPath, out.Path)
	assert.Equal(t, LinkSuccess, out.Link)

	again := c.HandleProviderCallback(ctx, assertion("github", "gh-a", "alice@gh.example"), state)
	assert.Equal(t, LinkSuccess, again.Link)
	assert.Equal(t, 1, st.CountExternalLogins("github", "gh-a"))

	stolen := c.HandleProviderCallback(ctx, assertion("github", "gh-a", "alice@gh.example"),
		RequestState{Linking: true, TargetUserID: bob.UserID})
	assert.Equal(t, KindRedirect, stolen.Kind)
	assert.Equal(t, LinkError, stolen.Link)
	assert.Equal(t, MsgAlreadyLinked, stolen.Message)

	l, err := st.GetExternalLoginForProvider(ctx, "github", "gh-a")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, l.UserID)
	assert.Equal(t, 1, st.CountExternalLogins("github", "gh-a"))
}

func TestLink_FlagWithoutTargetIsLogin(t *testing.T) {
	c, _ := newCoordinator(t)
	out := c.HandleProviderCallback(context.Background(), assertion("google", "g-1", "x@example.com"), RequestState{Linking: true})
	assert.Equal(t, KindSignIn, out.Kind)
}

func TestUnlink_LastLoginProtection(t *testing.T) {
	ctx := context.Background()
	c, st := newCoordinator(t)
	u := c.HandleProviderCallback(ctx, assertion("google", "g-1", "dan@example.com"), RequestState{})

	assert.ErrorIs(t, c.Unlink(ctx, u.UserID, "google"), ErrLastLogin)
	assert.Equal(t, 1, st.CountExternalLogins("google", "g-1"))

	link := c.HandleProviderCallback(ctx, assertion("github", "gh-1", "dan@gh.example"), RequestState{Linking: true, TargetUserID: u.UserID})
	require.Equal(t, LinkSuccess, link.Link)

	require.NoError(t, c.Unlink(ctx, u.UserID, "google"))
	assert.Equal(t, 0, st.CountExternalLogins("google", "g-1"))
	logins, _ := st.GetExternalLoginsForUser(ctx, u.UserID)
	assert.Len(t, logins, 1)

	assert.ErrorIs(t, c.Unlink(ctx, u.UserID, "google"), ErrLoginNotFound)
}
