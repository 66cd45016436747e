package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateList(t *testing.T) {
	out, err := run(t, "migrate", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0001")
}

func TestMigrateUp_RequiresPostgres(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := run(t, "migrate", "up")
	require.Error(t, err)
}

func TestProviders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  public_url: https://login.example.com
providers:
  - name: github
    kind: oauth
    authority: https://github.com
    authorization_endpoint: https://github.com/login/oauth/authorize
    token_endpoint: https://github.com/login/oauth/access_token
    userinfo_endpoint: https://api.github.com/user
    client_id: abc
`), 0o600))

	out, err := run(t, "--config", path, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "github")
	assert.Contains(t, out, "https://login.example.com/account/callback/github")
}
