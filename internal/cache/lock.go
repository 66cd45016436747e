package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/accountlink/internal/security/token"
)

// ErrLockTimeout indica que no se obtuvo el lock antes de que venza el ctx o el wait.
var ErrLockTimeout = errors.New("cache: lock wait timeout")

// Lock es un lock distribuido best-effort sobre SetNX con TTL.
// El TTL acota cuánto puede quedar tomado si el dueño muere.
type Lock struct {
	c     Client
	key   string
	token []byte
}

// TryLock intenta tomar key una vez.
func TryLock(ctx context.Context, c Client, key string, ttl time.Duration) (*Lock, bool, error) {
	tok, err := token.GenerateOpaqueToken(16)
	if err != nil {
		return nil, false, err
	}
	ok, err := c.SetNX(ctx, key, []byte(tok), ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lock{c: c, key: key, token: []byte(tok)}, true, nil
}

// AcquireLock reintenta TryLock cada poll hasta wait o hasta que ctx termine.
func AcquireLock(ctx context.Context, c Client, key string, ttl, wait, poll time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	for {
		l, ok, err := TryLock(ctx, c, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return l, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Release libera el lock si todavía es nuestro. Entre el Get y el Delete
// otro dueño podría tomarlo sólo si nuestro TTL venció en ese intervalo.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	cur, err := l.c.Get(ctx, l.key)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(cur) != string(l.token) {
		return nil
	}
	return l.c.Delete(ctx, l.key)
}
