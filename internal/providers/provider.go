// Package providers defines the configured external identity providers.
//
// Providers are loaded once at startup from configuration and never change.
// Each entry is one of two variants selected at registration time:
//   - OIDCProvider: discovery + id_token verification against the JWKS.
//   - OAuthProvider: plain OAuth2 authorization code + userinfo endpoint.
//
// Both produce the same Assertion, so login and linking run through a single
// coordinator regardless of the provider kind.
package providers

import (
	"context"
	"errors"
	"time"
)

// Kind indicates the protocol spoken by a provider.
type Kind string

const (
	KindOIDC  Kind = "oidc"
	KindOAuth Kind = "oauth"
)

// Config is the static configuration of one provider.
type Config struct {
	Name                  string   `yaml:"name"`
	Kind                  Kind     `yaml:"kind"`
	DisplayName           string   `yaml:"display_name"`
	Authority             string   `yaml:"authority"`
	AuthorizationEndpoint string   `yaml:"authorization_endpoint"`
	TokenEndpoint         string   `yaml:"token_endpoint"`
	UserInfoEndpoint      string   `yaml:"userinfo_endpoint"`
	JWKSURI               string   `yaml:"jwks_uri"`
	ClientID              string   `yaml:"client_id"`
	ClientSecret          string   `yaml:"client_secret"`
	Scopes                []string `yaml:"scopes"`
	// Audiences aceptadas en credenciales bearer. Vacío = sólo ClientID.
	Audiences []string `yaml:"audiences"`
}

// Tokens are the provider-issued tokens carried into the session ticket.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Assertion is the identity a provider vouches for after a successful exchange.
type Assertion struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Issuer   string
	Tokens   Tokens
	Raw      map[string]any
}

// Provider is implemented by OIDCProvider and OAuthProvider.
type Provider interface {
	Name() string
	Kind() Kind
	Config() Config

	// BuildChallenge returns the authorization URL the browser is sent to.
	BuildChallenge(ctx context.Context, state, nonce, redirectURI string) (string, error)

	// Authenticate exchanges the authorization code and returns the identity.
	Authenticate(ctx context.Context, code, nonce, redirectURI string) (*Assertion, error)

	// VerifyBearer validates an inbound bearer credential issued by this provider.
	VerifyBearer(ctx context.Context, credential string) (*Assertion, error)
}

var (
	ErrUnknownProvider = errors.New("providers: unknown provider")
	ErrUnknownKind     = errors.New("providers: unknown kind")
	ErrExchange        = errors.New("providers: code exchange failed")
	ErrInvalidToken    = errors.New("providers: invalid token")
	ErrUserInfo        = errors.New("providers: userinfo request failed")
)
