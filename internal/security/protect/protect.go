// Package protect sella y abre blobs opacos con AES-256-GCM.
//
// La clave AES se deriva por propósito con HKDF-SHA256 a partir de un secreto
// maestro (session.protection_key), así el mismo secreto no se reusa entre
// usos distintos (ticket, state, etc).
//
// Formato de salida: base64url(nonce || ciphertext), sin padding.
package protect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSizeGCM  = 12 // 96 bits
	keyLength     = 32 // AES-256
	minSecretSize = 16
)

var (
	// ErrMalformed indica que el blob no tiene el formato esperado.
	ErrMalformed = errors.New("protect: malformed payload")
	// ErrTampered indica que la autenticación GCM falló (clave distinta o blob alterado).
	ErrTampered = errors.New("protect: authentication failed")
)

// Protector sella/abre con una clave derivada fija.
type Protector struct {
	aead cipher.AEAD
}

// New deriva la clave para purpose a partir de secret (base64, hex o texto).
func New(secret, purpose string) (*Protector, error) {
	master := decodeSecret(secret)
	if len(master) < minSecretSize {
		return nil, fmt.Errorf("protect: secreto demasiado corto: %d bytes (mínimo %d)", len(master), minSecretSize)
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("protect: hkdf: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Protector{aead: aead}, nil
}

// Seal cifra plain y devuelve base64url(nonce||ct).
func (p *Protector) Seal(plain []byte) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	out := p.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open revierte Seal.
func (p *Protector) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return nil, ErrMalformed
	}
	if len(raw) < nonceSizeGCM+p.aead.Overhead() {
		return nil, ErrMalformed
	}
	pt, err := p.aead.Open(nil, raw[:nonceSizeGCM], raw[nonceSizeGCM:], nil)
	if err != nil {
		return nil, ErrTampered
	}
	return pt, nil
}

// decodeSecret acepta base64 (std/raw), hex de 64 chars o el texto tal cual.
func decodeSecret(s string) []byte {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) >= minSecretSize {
		return b
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) >= minSecretSize {
		return b
	}
	if len(s) == 64 {
		if h, err := hex.DecodeString(s); err == nil {
			return h
		}
	}
	return []byte(s)
}
