// Package roles cachea los roles de cada usuario en el cache compartido.
// Todo mutador de UserRole debe llamar Invalidate.
package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// DefaultTTL de cada entrada roles:<id>.
const DefaultTTL = 10 * time.Minute

// Source es la fuente de verdad (repository.Store la satisface).
type Source interface {
	GetRolesForUser(ctx context.Context, userID string) ([]string, error)
}

type Cache struct {
	cache  cache.Client
	source Source
	ttl    time.Duration
}

func NewCache(c cache.Client, src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{cache: c, source: src, ttl: ttl}
}

func key(userID string) string { return "roles:" + userID }

// RolesFor lee del cache y, en miss, de la fuente. Un cache caído degrada a
// leer siempre de la fuente.
func (c *Cache) RolesFor(ctx context.Context, userID string) ([]string, error) {
	log := logger.From(ctx).With(logger.Component("roles"), logger.UserID(userID))

	b, err := c.cache.Get(ctx, key(userID))
	if err == nil {
		var out []string
		if jerr := json.Unmarshal(b, &out); jerr == nil {
			return out, nil
		}
		log.Warn("role cache entry corrupt, reloading")
	} else if !cache.IsNotFound(err) {
		log.Warn("role cache read failed", logger.Err(err))
	}

	roles, err := c.source.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roles: load: %w", err)
	}
	if roles == nil {
		roles = []string{}
	}
	if b, err := json.Marshal(roles); err == nil {
		if err := c.cache.Set(ctx, key(userID), b, c.ttl); err != nil {
			log.Warn("role cache write failed", logger.Err(err))
		}
	}
	return roles, nil
}

// Invalidate borra la entrada del usuario.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.cache.Delete(ctx, key(userID)); err != nil && !cache.IsNotFound(err) {
		logger.From(ctx).Warn("role cache invalidate failed", logger.UserID(userID), logger.Err(err))
	}
}
