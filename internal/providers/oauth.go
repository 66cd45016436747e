package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// OAuthProvider is a plain OAuth2 authorization-code provider. Identity comes
// from the userinfo endpoint, since there is no id_token to verify.
type OAuthProvider struct {
	cfg   Config
	http  *http.Client
	oauth oauth2.Config
}

func NewOAuthProvider(cfg Config, hc *http.Client) (*OAuthProvider, error) {
	if cfg.AuthorizationEndpoint == "" || cfg.TokenEndpoint == "" || cfg.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("providers: %s: oauth requires authorization, token and userinfo endpoints", cfg.Name)
	}
	return &OAuthProvider{
		cfg:  cfg,
		http: hc,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizationEndpoint,
				TokenURL:  cfg.TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

func (p *OAuthProvider) Name() string   { return p.cfg.Name }
func (p *OAuthProvider) Kind() Kind     { return KindOAuth }
func (p *OAuthProvider) Config() Config { return p.cfg }

func (p *OAuthProvider) withRedirect(redirectURI string) *oauth2.Config {
	c := p.oauth
	c.RedirectURL = redirectURI
	return &c
}

func (p *OAuthProvider) BuildChallenge(ctx context.Context, state, nonce, redirectURI string) (string, error) {
	return p.withRedirect(redirectURI).AuthCodeURL(state), nil
}

func (p *OAuthProvider) Authenticate(ctx context.Context, code, nonce, redirectURI string) (*Assertion, error) {
	tok, err := p.withRedirect(redirectURI).Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.http), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	a, err := p.userInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	a.Tokens = Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if id, _ := tok.Extra("id_token").(string); id != "" {
		a.Tokens.IDToken = id
	}
	return a, nil
}

// VerifyBearer treats the credential as an opaque access token and validates
// it by calling userinfo.
func (p *OAuthProvider) VerifyBearer(ctx context.Context, credential string) (*Assertion, error) {
	a, err := p.userInfo(ctx, credential)
	if err != nil {
		return nil, err
	}
	a.Tokens = Tokens{AccessToken: credential}
	return a, nil
}

func (p *OAuthProvider) userInfo(ctx context.Context, accessToken string) (*Assertion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: userinfo http %d", ErrInvalidToken, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrUserInfo, resp.StatusCode)
	}

	var raw map[string]any
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUserInfo, err)
	}

	return &Assertion{
		Provider: p.cfg.Name,
		Subject:  firstClaim(raw, "sub", "id", "user_id"),
		Email:    firstClaim(raw, "email"),
		Name:     firstClaim(raw, "name", "login", "preferred_username"),
		Issuer:   p.cfg.Authority,
		Raw:      raw,
	}, nil
}

func firstClaim(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := strClaim(m, k); v != "" {
			return v
		}
	}
	return ""
}
