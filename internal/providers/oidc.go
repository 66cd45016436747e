package providers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	discoveryPath = "/.well-known/openid-configuration"
	discoveryTTL  = 24 * time.Hour
	jwksTTL       = time.Hour
	clockSkew     = 30 * time.Second
)

type discoveryDoc struct {
	Issuer           string `json:"issuer"`
	AuthEndpoint     string `json:"authorization_endpoint"`
	TokenEndpoint    string `json:"token_endpoint"`
	UserInfoEndpoint string `json:"userinfo_endpoint"`
	JWKSURI          string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// OIDCProvider resolves endpoints through discovery (unless configured
// explicitly) and verifies id_tokens with RS256 keys from the JWKS.
type OIDCProvider struct {
	cfg  Config
	http *http.Client

	mu       sync.RWMutex
	disc     *discoveryDoc
	discAt   time.Time
	jwks     *jwks
	jwksAt   time.Time
	jwksETag string
}

func NewOIDCProvider(cfg Config, hc *http.Client) *OIDCProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return &OIDCProvider{cfg: cfg, http: hc}
}

func (p *OIDCProvider) Name() string   { return p.cfg.Name }
func (p *OIDCProvider) Kind() Kind     { return KindOIDC }
func (p *OIDCProvider) Config() Config { return p.cfg }

func (p *OIDCProvider) discovery(ctx context.Context) (*discoveryDoc, error) {
	p.mu.RLock()
	disc := p.disc
	stale := time.Since(p.discAt) > discoveryTTL
	p.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	dd := discoveryDoc{
		Issuer:           p.cfg.Authority,
		AuthEndpoint:     p.cfg.AuthorizationEndpoint,
		TokenEndpoint:    p.cfg.TokenEndpoint,
		UserInfoEndpoint: p.cfg.UserInfoEndpoint,
		JWKSURI:          p.cfg.JWKSURI,
	}
	if dd.AuthEndpoint == "" || dd.TokenEndpoint == "" || dd.JWKSURI == "" {
		u := strings.TrimRight(p.cfg.Authority, "/") + discoveryPath
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("oidc discovery http %d", resp.StatusCode)
		}
		var got discoveryDoc
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return nil, fmt.Errorf("oidc discovery decode: %w", err)
		}
		// lo configurado explícitamente gana
		if dd.AuthEndpoint == "" {
			dd.AuthEndpoint = got.AuthEndpoint
		}
		if dd.TokenEndpoint == "" {
			dd.TokenEndpoint = got.TokenEndpoint
		}
		if dd.UserInfoEndpoint == "" {
			dd.UserInfoEndpoint = got.UserInfoEndpoint
		}
		if dd.JWKSURI == "" {
			dd.JWKSURI = got.JWKSURI
		}
		if got.Issuer != "" {
			dd.Issuer = got.Issuer
		}
	}

	p.mu.Lock()
	p.disc = &dd
	p.discAt = time.Now()
	p.mu.Unlock()
	return &dd, nil
}

// TokenEndpoint resolves the token endpoint used for later refreshes.
func (p *OIDCProvider) TokenEndpoint(ctx context.Context) (string, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return "", err
	}
	return d.TokenEndpoint, nil
}

func (p *OIDCProvider) getJWKS(ctx context.Context, uri string, force bool) (*jwks, error) {
	p.mu.RLock()
	j := p.jwks
	age := time.Since(p.jwksAt)
	etag := p.jwksETag
	p.mu.RUnlock()
	if j != nil && age < jwksTTL && !force {
		return j, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if etag != "" && j != nil {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && j != nil {
		p.mu.Lock()
		p.jwksAt = time.Now()
		p.mu.Unlock()
		return j, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
	}
	var jj jwks
	if err := json.NewDecoder(resp.Body).Decode(&jj); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.jwks = &jj
	p.jwksAt = time.Now()
	p.jwksETag = resp.Header.Get("ETag")
	p.mu.Unlock()
	return &jj, nil
}

func (p *OIDCProvider) rsaKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	disc, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}
	set, err := p.getJWKS(ctx, disc.JWKSURI, false)
	if err != nil {
		return nil, err
	}
	if k := findKey(set, kid); k != nil {
		return k, nil
	}
	// rotación de claves: un kid nuevo fuerza un refetch
	set, err = p.getJWKS(ctx, disc.JWKSURI, true)
	if err != nil {
		return nil, err
	}
	if k := findKey(set, kid); k != nil {
		return k, nil
	}
	return nil, errors.New("kid not found")
}

func findKey(set *jwks, kid string) *rsa.PublicKey {
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") || (kid != "" && k.Kid != kid) {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		e := 65537
		if len(eb) > 0 {
			e = 0
			for _, b := range eb {
				e = (e << 8) | int(b)
			}
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}
	}
	return nil
}

func (p *OIDCProvider) oauth2Config(d *discoveryDoc, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   d.AuthEndpoint,
			TokenURL:  d.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (p *OIDCProvider) BuildChallenge(ctx context.Context, state, nonce, redirectURI string) (string, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return "", err
	}
	return p.oauth2Config(d, redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("nonce", nonce),
	), nil
}

func (p *OIDCProvider) Authenticate(ctx context.Context, code, nonce, redirectURI string) (*Assertion, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := p.oauth2Config(d, redirectURI).Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.http), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: missing id_token", ErrExchange)
	}

	a, err := p.verify(ctx, idToken, nonce, []string{p.cfg.ClientID})
	if err != nil {
		return nil, err
	}
	a.Tokens = Tokens{
		IDToken:      idToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	return a, nil
}

func (p *OIDCProvider) VerifyBearer(ctx context.Context, credential string) (*Assertion, error) {
	a, err := p.verify(ctx, credential, "", p.bearerAudiences())
	if err != nil {
		return nil, err
	}
	a.Tokens = Tokens{AccessToken: credential}
	return a, nil
}

func (p *OIDCProvider) bearerAudiences() []string {
	if len(p.cfg.Audiences) > 0 {
		return p.cfg.Audiences
	}
	return []string{p.cfg.ClientID}
}

// verify checks signature, iss, exp, that aud holds one of audiences and
// (when expected) nonce.
func (p *OIDCProvider) verify(ctx context.Context, raw, expectedNonce string, audiences []string) (*Assertion, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return p.rsaKeyForKid(ctx, kid)
	},
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithLeeway(clockSkew),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: claims type", ErrInvalidToken)
	}

	iss := strClaim(claims, "iss")
	if !issuerMatches(iss, d.Issuer) {
		return nil, fmt.Errorf("%w: bad iss %q", ErrInvalidToken, iss)
	}
	if !audienceContains(claims, audiences) {
		return nil, fmt.Errorf("%w: bad aud", ErrInvalidToken)
	}
	if expectedNonce != "" && strClaim(claims, "nonce") != expectedNonce {
		return nil, fmt.Errorf("%w: bad nonce", ErrInvalidToken)
	}

	return &Assertion{
		Provider: p.cfg.Name,
		Subject:  strClaim(claims, "sub"),
		Email:    strClaim(claims, "email"),
		Name:     strClaim(claims, "name"),
		Issuer:   iss,
		Raw:      claims,
	}, nil
}

func issuerMatches(iss, want string) bool {
	return iss != "" && strings.TrimRight(iss, "/") == strings.TrimRight(want, "/")
}

func audienceContains(claims jwtv5.MapClaims, accepted []string) bool {
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range aud {
		if a != "" && slices.Contains(accepted, a) {
			return true
		}
	}
	return false
}

func strClaim(m map[string]any, k string) string {
	switch v := m[k].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	}
	return ""
}
