package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// DefaultSlidingTTL es la ventana de inactividad de una sesión.
const DefaultSlidingTTL = 30 * time.Minute

// ErrNoSession indica que la request no trae una sesión válida.
var ErrNoSession = errors.New("session: no session")

// CookieConfig describe la cookie que transporta la clave del ticket.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite string // Lax | Strict | None
}

// Store es la parte del ticket store que usa el Manager.
type Store interface {
	TicketRepo
	Store(ctx context.Context, t *ticket.Ticket) (string, error)
	Remove(ctx context.Context, key string) error
}

// Manager pega la cookie con el ticket store.
type Manager struct {
	tickets Store
	guard   *Guard
	cookie  CookieConfig
	sliding time.Duration
	now     func() time.Time
}

func NewManager(tickets Store, guard *Guard, cookie CookieConfig, sliding time.Duration) *Manager {
	if sliding <= 0 {
		sliding = DefaultSlidingTTL
	}
	if cookie.Name == "" {
		cookie.Name = "al_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &Manager{
		tickets: tickets,
		guard:   guard,
		cookie:  cookie,
		sliding: sliding,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CookieName expone el nombre configurado.
func (m *Manager) CookieName() string { return m.cookie.Name }

// SignIn persiste un ticket nuevo y setea la cookie.
func (m *Manager) SignIn(ctx context.Context, w http.ResponseWriter, t *ticket.Ticket) (*Session, error) {
	now := m.now()
	t.IssuedUTC = now
	t.ExpiresUTC = now.Add(m.sliding)
	key, err := m.tickets.Store(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("session: store ticket: %w", err)
	}
	http.SetCookie(w, m.buildCookie(key, t.ExpiresUTC))
	return &Session{Key: key, Ticket: t}, nil
}

// Load lee la cookie y recupera el ticket, sin refresh.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return nil, ErrNoSession
	}
	t, err := m.tickets.Retrieve(ctx, c.Value)
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return &Session{Key: c.Value, Ticket: t}, nil
}

// Authenticate = Load + Guard + Touch. Es lo que corre en cada request.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	renewed := false
	if m.guard != nil {
		s.Ticket, renewed = m.guard.Apply(ctx, s.Key, s.Ticket)
	}
	m.Touch(ctx, w, s, renewed)
	return s, nil
}

// Touch extiende la expiración deslizante cuando hubo refresh o pasó la
// mitad de la ventana. Sólo se escriben las fechas sobre el ticket releído,
// así no se pisa un refresh hecho por otra request.
func (m *Manager) Touch(ctx context.Context, w http.ResponseWriter, s *Session, force bool) {
	now := m.now()
	half := s.Ticket.IssuedUTC.Add(m.sliding / 2)
	if !force && now.Before(half) {
		return
	}
	err := m.mutate(ctx, s, func(t *ticket.Ticket) {
		t.IssuedUTC = now
		t.ExpiresUTC = now.Add(m.sliding)
	})
	if err != nil {
		logger.From(ctx).Warn("sliding renewal failed", logger.Component("session"), logger.TicketKey(s.Key), logger.Err(err))
		return
	}
	http.SetCookie(w, m.buildCookie(s.Key, s.Ticket.ExpiresUTC))
}

// Update aplica change al ticket persistido (ej: re-estampar un claim) y deja
// el resultado en s.
func (m *Manager) Update(ctx context.Context, s *Session, change func(*ticket.Ticket)) error {
	return m.mutate(ctx, s, change)
}

func (m *Manager) mutate(ctx context.Context, s *Session, change func(*ticket.Ticket)) error {
	if m.guard == nil {
		change(s.Ticket)
		return m.tickets.Renew(ctx, s.Key, s.Ticket)
	}
	t, err := m.guard.Mutate(ctx, s.Key, change)
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}
	s.Ticket = t
	return nil
}

// SignOut borra el ticket y la cookie. Sin sesión no es error.
func (m *Manager) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, m.deletionCookie())
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || c.Value == "" {
		return nil
	}
	return m.tickets.Remove(ctx, c.Value)
}

func (m *Manager) sameSite() http.SameSite {
	switch strings.ToLower(m.cookie.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (m *Manager) buildCookie(key string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie.Name,
		Value:    key,
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.sameSite(),
	}
}

func (m *Manager) deletionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.sameSite(),
	}
}
