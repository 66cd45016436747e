package ticket

import (
	"strings"
	"time"
)

// DefaultRefreshSkew es la ventana antes de la expiración en la que se refresca.
const DefaultRefreshSkew = 60 * time.Second

var expiresAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// NormalizeTokenTimes reescribe expires_at en UTC RFC3339. Si el valor no se
// puede parsear lo elimina y devuelve false: ese ticket queda sin expiración
// conocida y nunca se refresca.
func NormalizeTokenTimes(t *Ticket) (time.Time, bool) {
	raw := strings.TrimSpace(t.Token(TokenExpiresAt))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range expiresAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			t.SetToken(TokenExpiresAt, ts.Format(time.RFC3339))
			return ts, true
		}
	}
	t.SetToken(TokenExpiresAt, "")
	return time.Time{}, false
}

// ShouldRefresh: now > expiresAt-skew, hay refresh token y el ticket tiene
// client_id, client_secret y token_endpoint.
func ShouldRefresh(now time.Time, t *Ticket, skew time.Duration) bool {
	if t == nil {
		return false
	}
	exp, ok := NormalizeTokenTimes(t)
	if !ok {
		return false
	}
	if !now.After(exp.Add(-skew)) {
		return false
	}
	if t.Token(TokenRefresh) == "" {
		return false
	}
	return t.Prop(PropClientID) != "" && t.Prop(PropClientSecret) != "" && t.Prop(PropTokenEndpoint) != ""
}

// ApplyTokens reemplaza los tokens del ticket con el resultado de un refresh.
func ApplyTokens(t *Ticket, ts TokenSet) {
	t.SetToken(TokenID, ts.IDToken)
	t.SetToken(TokenAccess, ts.AccessToken)
	t.SetToken(TokenRefresh, ts.RefreshToken)
	t.SetToken(TokenExpiresAt, ts.ExpiresAt.UTC().Format(time.RFC3339))
}
