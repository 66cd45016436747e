package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/providers"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "al_session", c.Session.CookieName)
	assert.Equal(t, time.Hour, c.Session.TicketTTL)
	assert.Equal(t, 30*time.Minute, c.Session.SlidingTTL)
	assert.Equal(t, 60*time.Second, c.Session.RefreshSkew)
	assert.Equal(t, 10*time.Minute, c.Auth.StateTTL)
	assert.Equal(t, 10*time.Minute, c.Auth.RoleCacheTTL)
	assert.Empty(t, c.Providers)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeYAML(t, `
app:
  app_env: dev
session:
  sliding_ttl: 20m
auth:
  admin_email: root@example.com
providers:
  - name: idp-a
    authority: https://idp-a.example.com
    client_id: a
  - name: gh
    kind: oauth
    authorization_endpoint: https://gh.example.com/authorize
    token_endpoint: https://gh.example.com/token
    userinfo_endpoint: https://gh.example.com/user
    client_id: gh
`)
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("PROVIDER_IDP_A_CLIENT_SECRET", "from-env")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, c.Session.SlidingTTL)
	assert.Equal(t, "root@example.com", c.Auth.AdminEmail)
	assert.Equal(t, "redis", c.Cache.Kind)
	require.Len(t, c.Providers, 2)
	assert.Equal(t, providers.KindOIDC, c.Providers[0].Kind)
	assert.Equal(t, []string{"openid", "email", "profile"}, c.Providers[0].Scopes)
	assert.Equal(t, "from-env", c.Providers[0].ClientSecret)
	assert.Equal(t, providers.KindOAuth, c.Providers[1].Kind)
	assert.Empty(t, c.Providers[1].Scopes)
}

func TestValidate_Providers(t *testing.T) {
	path := writeYAML(t, `
providers:
  - name: a
    authority: https://a
    client_id: x
  - name: a
    authority: https://a2
    client_id: y
  - name: b
    kind: oauth
    client_id: z
  - name: c
    kind: saml
    client_id: w
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate name "a"`)
	assert.Contains(t, err.Error(), "provider b: authorization, token and userinfo endpoints")
	assert.Contains(t, err.Error(), `unknown kind "saml"`)
}

func TestValidate_ProviderNameAndScopes(t *testing.T) {
	path := writeYAML(t, `
providers:
  - name: My IdP
    authority: https://idp
    client_id: x
  - name: okta
    authority: https://okta
    client_id: y
    scopes: [openid, "bad scope"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid name "My IdP"`)
	assert.Contains(t, err.Error(), `provider okta: invalid scope "bad scope"`)
}

func TestValidate_ProdRequiresKeys(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.protection_key")
	assert.Contains(t, err.Error(), "auth.state_key")

	t.Setenv("SESSION_PROTECTION_KEY", "0123456789abcdef0123")
	t.Setenv("AUTH_STATE_KEY", "fedcba9876543210fedc")
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.IsProd())
}

func TestValidate_Storage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn")

	t.Setenv("STORAGE_DSN", "postgres://localhost/accountlink")
	_, err = Load("")
	require.NoError(t, err)
}
