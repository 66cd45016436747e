package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/security/token"
)

// DefaultTTL es el TTL absoluto de cada entrada en el cache.
const DefaultTTL = time.Hour

const (
	keyPrefix = "ticket:"
	keyBytes  = 32
)

// ErrTicketNotFound indica que el ticket no existe o expiró.
var ErrTicketNotFound = errors.New("ticket not found")

// Store persiste tickets en el cache compartido.
// El valor se escribe siempre completo: Renew no mergea, gana la última escritura.
type Store struct {
	cache cache.Client
	codec *Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewStore crea el store. ttl <= 0 usa DefaultTTL.
func NewStore(c cache.Client, codec *Codec, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, codec: codec, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// CacheKey es la clave en el cache para una clave de sesión. La clave cruda
// sólo viaja en la cookie.
func CacheKey(key string) string {
	return keyPrefix + token.SHA256Hex(key)
}

// Store genera una clave nueva y persiste el ticket.
func (s *Store) Store(ctx context.Context, t *Ticket) (string, error) {
	key, err := token.GenerateOpaqueToken(keyBytes)
	if err != nil {
		return "", fmt.Errorf("ticket: generate key: %w", err)
	}
	if t.IssuedUTC.IsZero() {
		t.IssuedUTC = s.now()
	}
	if err := s.write(ctx, key, t); err != nil {
		return "", err
	}
	return key, nil
}

// Renew sobrescribe el valor de key con la misma política de TTL.
func (s *Store) Renew(ctx context.Context, key string, t *Ticket) error {
	return s.write(ctx, key, t)
}

// Retrieve devuelve ErrTicketNotFound si no existe, expiró o no se puede abrir.
func (s *Store) Retrieve(ctx context.Context, key string) (*Ticket, error) {
	if key == "" {
		return nil, ErrTicketNotFound
	}
	b, err := s.cache.Get(ctx, CacheKey(key))
	if cache.IsNotFound(err) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket: cache get: %w", err)
	}
	t, err := s.codec.Decode(b)
	if err != nil {
		// blob de otra clave de protección o corrupto: equivale a no tener sesión
		return nil, fmt.Errorf("%w: %v", ErrTicketNotFound, err)
	}
	if !t.ExpiresUTC.IsZero() && s.now().After(t.ExpiresUTC) {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

// Remove borra la entrada (logout). Borrar algo inexistente no es error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, CacheKey(key)); err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("ticket: cache delete: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, key string, t *Ticket) error {
	b, err := s.codec.Encode(t)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, CacheKey(key), b, s.ttl); err != nil {
		return fmt.Errorf("ticket: cache set: %w", err)
	}
	return nil
}
