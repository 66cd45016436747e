package scheme

import (
	"testing"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountlink/internal/providers"
)

func unsignedToken(t *testing.T, iss string) string {
	t.Helper()
	claims := jwtv5.MapClaims{"sub": "x"}
	if iss != "" {
		claims["iss"] = iss
	}
	s, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return s
}

func newRouter() *Router {
	return NewRouter([]providers.Config{
		{Name: "idp-a", Authority: "https://idp-a.example"},
		{Name: "github", Authority: ""},
		{Name: "idp-a-wide", Authority: "https://idp-a"},
	})
}

func TestSelect_MatchesAuthorityPrefix(t *testing.T) {
	name, err := newRouter().Select("Bearer " + unsignedToken(t, "https://idp-a.example/"))
	require.NoError(t, err)
	assert.Equal(t, "idp-a", name)
}

func TestSelect_FirstConfiguredWins(t *testing.T) {
	r := NewRouter([]providers.Config{
		{Name: "wide", Authority: "https://idp-a"},
		{Name: "narrow", Authority: "https://idp-a.example"},
	})
	name, err := r.Select("Bearer " + unsignedToken(t, "https://idp-a.example/"))
	require.NoError(t, err)
	assert.Equal(t, "wide", name)
}

func TestSelect_Errors(t *testing.T) {
	r := newRouter()
	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"unknown issuer", "Bearer " + unsignedToken(t, "https://unknown.example"), ErrNoProviderMatch},
		{"missing header", "", ErrUnsupportedScheme},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrUnsupportedScheme},
		{"garbage token", "Bearer not.a.jwt", ErrUnparsableToken},
		{"no issuer", "Bearer " + unsignedToken(t, ""), ErrUnparsableToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Select(tc.header)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSelect_SchemeCaseInsensitive(t *testing.T) {
	name, err := newRouter().Select("bearer " + unsignedToken(t, "https://idp-a.example/x"))
	require.NoError(t, err)
	assert.Equal(t, "idp-a", name)
}
