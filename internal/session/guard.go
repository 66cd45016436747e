// Package session mantiene la sesión server-side viva: refresh de tokens por
// request (Guard), cookie <-> ticket (Manager) y resolución de credenciales
// bearer (BearerResolver).
package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/metrics"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/security/token"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

const (
	lockTTL  = 10 * time.Second
	lockWait = 5 * time.Second
	lockPoll = 25 * time.Millisecond

	// refreshTimeout acota el refresh compartido, que no depende del ctx de
	// ninguna request en particular.
	refreshTimeout = 15 * time.Second
)

// TicketRepo es lo que el guard necesita del ticket store.
type TicketRepo interface {
	Retrieve(ctx context.Context, key string) (*ticket.Ticket, error)
	Renew(ctx context.Context, key string, t *ticket.Ticket) error
}

// Guard refresca los tokens del ticket cuando están por expirar.
//
// El refresh se serializa por clave de ticket: singleflight dentro del proceso
// y un lock ticket-lock:<hash> en el cache entre instancias. Dentro del lock
// se relee el ticket y se reevalúa la política, así la segunda request usa el
// ticket ya refrescado en lugar de gastar otra vez el refresh token.
// Toda otra escritura sobre un ticket existente pasa por Mutate, que toma el
// mismo lock.
type Guard struct {
	tickets   TicketRepo
	refresher ticket.Refresher
	locks     cache.Client
	skew      time.Duration
	now       func() time.Time
	sf        singleflight.Group
}

func NewGuard(tickets TicketRepo, refresher ticket.Refresher, locks cache.Client, skew time.Duration) *Guard {
	if skew <= 0 {
		skew = ticket.DefaultRefreshSkew
	}
	return &Guard{
		tickets:   tickets,
		refresher: refresher,
		locks:     locks,
		skew:      skew,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func hashKey(key string) string { return token.SHA256Hex(key) }

func lockKey(key string) string { return "ticket-lock:" + hashKey(key) }

type applyResult struct {
	t       *ticket.Ticket
	renewed bool
}

// Apply devuelve el ticket a usar en esta request y si hubo refresh (la
// sesión debe extender su expiración). Los fallos de refresh nunca se
// propagan: se loguean y se sigue con el ticket actual.
func (g *Guard) Apply(ctx context.Context, key string, t *ticket.Ticket) (*ticket.Ticket, bool) {
	work := t.Clone()
	if !ticket.ShouldRefresh(g.now(), work, g.skew) {
		return work, false
	}

	ch := g.sf.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return g.refreshLocked(sctx, key), nil
	})
	select {
	case <-ctx.Done():
		// el refresh sigue para las demás requests; ésta usa lo que tiene
		return work, false
	case r := <-ch:
		res, _ := r.Val.(applyResult)
		if res.t == nil {
			return work, false
		}
		return res.t.Clone(), res.renewed
	}
}

// Mutate relee el ticket bajo el lock de refresh, le aplica change y lo
// persiste. Devuelve el ticket resultante.
func (g *Guard) Mutate(ctx context.Context, key string, change func(*ticket.Ticket)) (*ticket.Ticket, error) {
	lock, err := cache.AcquireLock(ctx, g.locks, lockKey(key), lockTTL, lockWait, lockPoll)
	if err != nil {
		return nil, fmt.Errorf("session: ticket lock: %w", err)
	}
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()

	cur, err := g.tickets.Retrieve(ctx, key)
	if err != nil {
		return nil, err
	}
	change(cur)
	if err := g.tickets.Renew(ctx, key, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (g *Guard) refreshLocked(ctx context.Context, key string) applyResult {
	log := logger.From(ctx).With(logger.Component("session.guard"), logger.TicketKey(key))

	lock, err := cache.AcquireLock(ctx, g.locks, lockKey(key), lockTTL, lockWait, lockPoll)
	if err != nil {
		metrics.TicketRefreshTotal.WithLabelValues("lock_timeout").Inc()
		log.Warn("refresh lock not acquired", logger.Err(err))
		return applyResult{}
	}
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()

	cur, err := g.tickets.Retrieve(ctx, key)
	if err != nil {
		log.Debug("ticket vanished before refresh", logger.Err(err))
		return applyResult{}
	}
	if !ticket.ShouldRefresh(g.now(), cur, g.skew) {
		// otra request (u otra instancia) ya lo refrescó
		metrics.TicketRefreshTotal.WithLabelValues("skipped").Inc()
		return applyResult{t: cur}
	}

	ts, err := g.refresher.RefreshTokens(ctx,
		cur.Token(ticket.TokenRefresh),
		cur.Prop(ticket.PropClientID),
		cur.Prop(ticket.PropClientSecret),
		cur.Prop(ticket.PropTokenEndpoint),
	)
	if err != nil {
		metrics.TicketRefreshTotal.WithLabelValues("error").Inc()
		log.Warn("token refresh failed", logger.Provider(cur.Prop(ticket.PropProvider)), logger.Err(err))
		return applyResult{t: cur}
	}
	if ts.Empty() {
		metrics.TicketRefreshTotal.WithLabelValues("empty").Inc()
		log.Warn("token refresh returned no tokens", logger.Provider(cur.Prop(ticket.PropProvider)))
		return applyResult{t: cur}
	}

	ticket.ApplyTokens(cur, ts)
	if err := g.tickets.Renew(ctx, key, cur); err != nil {
		log.Error("renew after refresh failed", logger.Err(err))
	}
	metrics.TicketRefreshTotal.WithLabelValues("refreshed").Inc()
	log.Info("tokens refreshed", logger.Time("expires_at", ts.ExpiresAt))
	return applyResult{t: cur, renewed: true}
}
