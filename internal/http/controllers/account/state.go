package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/accountlink/internal/security/token"
)

// DefaultStateTTL es lo que tiene el usuario para volver del provider.
const DefaultStateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("account: invalid state")

// ChallengeState viaja firmado (HS256) en el parámetro state del provider.
// Corr es el hash de la cookie de correlación que ata el state al navegador.
type ChallengeState struct {
	Provider string `json:"prv"`
	Nonce    string `json:"nonce"`
	Return   string `json:"ret,omitempty"`
	Linking  bool   `json:"lnk,omitempty"`
	Target   string `json:"tgt,omitempty"`
	Corr     string `json:"corr"`
	jwt.RegisteredClaims
}

// StateCodec firma y verifica ChallengeState.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewStateCodec(key []byte, ttl time.Duration) (*StateCodec, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("account: state key must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCodec{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue completa nonce, id y expiración, y devuelve el state firmado junto al
// valor de la cookie de correlación.
func (c *StateCodec) Issue(st ChallengeState) (signed, corr string, err error) {
	if st.Nonce == "" {
		if st.Nonce, err = token.GenerateOpaqueToken(16); err != nil {
			return "", "", err
		}
	}
	if corr, err = token.GenerateOpaqueToken(32); err != nil {
		return "", "", err
	}
	id, err := token.GenerateOpaqueToken(9)
	if err != nil {
		return "", "", err
	}
	now := c.now()
	st.Corr = token.SHA256Hex(corr)
	st.RegisteredClaims = jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, &st).SignedString(c.key)
	return signed, corr, err
}

// Parse verifica firma, expiración y provider.
func (c *StateCodec) Parse(raw, provider string) (*ChallengeState, error) {
	var st ChallengeState
	_, err := jwt.ParseWithClaims(raw, &st, func(t *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if st.Provider != provider {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}
	return &st, nil
}

// CheckCorrelation compara la cookie con el hash del state.
func (st *ChallengeState) CheckCorrelation(cookieValue string) bool {
	return token.MatchesDigest(cookieValue, st.Corr)
}

// CorrelationCookieName depende del id del state para que dos logins en
// paralelo no se pisen.
func CorrelationCookieName(st *ChallengeState) string {
	return "al_corr_" + st.ID
}
