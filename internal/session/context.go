package session

import (
	"context"

	"github.com/dropDatabas3/accountlink/internal/ticket"
)

// Session es el ticket resuelto para la request actual.
type Session struct {
	Key    string
	Ticket *ticket.Ticket
}

// UserID es el claim sub (id interno).
func (s *Session) UserID() string {
	if s == nil || s.Ticket == nil {
		return ""
	}
	return s.Ticket.Principal.FindFirst(ticket.ClaimSubject)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext devuelve nil si la request no tiene sesión.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
