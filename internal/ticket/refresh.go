package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultExpiresIn se usa cuando el token endpoint no devuelve expires_in.
const DefaultExpiresIn = 3600

// TokenSet es el resultado de un refresh. Vacío (IDToken == "") significa
// "no se pudo refrescar".
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Empty indica que el refresh no produjo tokens utilizables.
func (ts TokenSet) Empty() bool { return ts.IDToken == "" }

// Refresher abstrae el intercambio para poder sustituirlo en tests.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken, clientID, clientSecret, tokenEndpoint string) (TokenSet, error)
}

// RefreshClient hace el POST grant_type=refresh_token.
type RefreshClient struct {
	http *http.Client
	now  func() time.Time
}

// NewRefreshClient usa hc o un cliente con timeout de 10s.
func NewRefreshClient(hc *http.Client) *RefreshClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &RefreshClient{http: hc, now: func() time.Time { return time.Now().UTC() }}
}

type refreshResponse struct {
	IDToken      string          `json:"id_token"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
}

// RefreshTokens devuelve un set vacío (sin error) ante status no-2xx o si la
// respuesta no trae id_token. Errores de transporte devuelven set vacío + error.
func (c *RefreshClient) RefreshTokens(ctx context.Context, refreshToken, clientID, clientSecret, tokenEndpoint string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, fmt.Errorf("refresh: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return TokenSet{}, nil
	}

	var rr refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rr); err != nil {
		return TokenSet{}, fmt.Errorf("refresh: decode: %w", err)
	}
	if rr.IDToken == "" {
		return TokenSet{}, nil
	}

	ts := TokenSet{
		IDToken:      rr.IDToken,
		AccessToken:  rr.AccessToken,
		RefreshToken: rr.RefreshToken,
	}
	if ts.AccessToken == "" {
		ts.AccessToken = rr.IDToken
	}
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	ts.ExpiresAt = c.now().Add(time.Duration(parseExpiresIn(rr.ExpiresIn)) * time.Second)
	return ts, nil
}

// parseExpiresIn acepta número o string numérico; cualquier otra cosa usa el default.
func parseExpiresIn(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultExpiresIn
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var v int64
		if _, err := fmt.Sscan(s, &v); err == nil && v > 0 {
			return v
		}
	}
	return DefaultExpiresIn
}
