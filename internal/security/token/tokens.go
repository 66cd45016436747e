// Package token genera valores opacos (claves de sesión, nonces, cookies de
// correlación) y los digests con que se guardan o comparan.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateOpaqueToken devuelve nBytes aleatorios en base64url sin padding.
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("token: invalid size %d", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Hex es el digest con que se indexan tickets y locks en el cache.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// MatchesDigest compara en tiempo constante value contra un SHA256Hex previo.
func MatchesDigest(value, digest string) bool {
	if value == "" || digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(SHA256Hex(value)), []byte(digest)) == 1
}
