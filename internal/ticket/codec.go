package ticket

import (
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/accountlink/internal/security/protect"
)

// Codec serializa el ticket a JSON y lo sella. El blob guardado en el cache
// es opaco: incluye client secrets y refresh tokens.
type Codec struct {
	p *protect.Protector
}

// NewCodec deriva la clave del ticket a partir de protectionKey.
func NewCodec(protectionKey string) (*Codec, error) {
	p, err := protect.New(protectionKey, "accountlink.ticket.v1")
	if err != nil {
		return nil, err
	}
	return &Codec{p: p}, nil
}

func (c *Codec) Encode(t *Ticket) ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("ticket: marshal: %w", err)
	}
	sealed, err := c.p.Seal(raw)
	if err != nil {
		return nil, err
	}
	return []byte(sealed), nil
}

func (c *Codec) Decode(b []byte) (*Ticket, error) {
	raw, err := c.p.Open(string(b))
	if err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("ticket: unmarshal: %w", err)
	}
	return &t, nil
}
