// Package ticket modela la sesión server-side ("ticket") y su ciclo de vida:
// persistencia en el cache compartido, política de refresh y el intercambio
// refresh_token contra el token endpoint del provider.
package ticket

import "time"

// Nombres de tokens guardados en Ticket.Tokens.
const (
	TokenAccess    = "access_token"
	TokenID        = "id_token"
	TokenRefresh   = "refresh_token"
	TokenExpiresAt = "expires_at"
)

// Propiedades que necesita el refresh.
const (
	PropClientID      = "client_id"
	PropClientSecret  = "client_secret"
	PropTokenEndpoint = "token_endpoint"
	PropProvider      = "provider"
)

// Tipos de claim emitidos en el principal de sesión.
const (
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimName     = "name"
	ClaimTenant   = "tid"
	ClaimRole     = "role"
	ClaimProvider = "idp"
)

// Claim es un par tipo/valor. Un mismo tipo puede repetirse (ej: role).
type Claim struct {
	Type  string `json:"t"`
	Value string `json:"v"`
}

// Principal es la identidad de la sesión.
type Principal struct {
	AuthenticationType string  `json:"auth"`
	Claims             []Claim `json:"claims"`
}

// Ticket es el registro de sesión persistido bajo una clave aleatoria.
type Ticket struct {
	Principal  Principal         `json:"principal"`
	Tokens     map[string]string `json:"tokens,omitempty"`
	Properties map[string]string `json:"props,omitempty"`
	IssuedUTC  time.Time         `json:"iat"`
	ExpiresUTC time.Time         `json:"exp"`
}

// FindFirst devuelve el primer valor del tipo dado o "".
func (p Principal) FindFirst(typ string) string {
	for _, c := range p.Claims {
		if c.Type == typ {
			return c.Value
		}
	}
	return ""
}

// FindAll devuelve todos los valores del tipo dado.
func (p Principal) FindAll(typ string) []string {
	var out []string
	for _, c := range p.Claims {
		if c.Type == typ {
			out = append(out, c.Value)
		}
	}
	return out
}

// Replace elimina todos los claims de tipo typ y agrega values en orden.
func (p *Principal) Replace(typ string, values ...string) {
	kept := p.Claims[:0:0]
	for _, c := range p.Claims {
		if c.Type != typ {
			kept = append(kept, c)
		}
	}
	for _, v := range values {
		kept = append(kept, Claim{Type: typ, Value: v})
	}
	p.Claims = kept
}

// Token devuelve el token name o "".
func (t *Ticket) Token(name string) string {
	if t == nil || t.Tokens == nil {
		return ""
	}
	return t.Tokens[name]
}

// SetToken setea (o borra si value == "") un token.
func (t *Ticket) SetToken(name, value string) {
	if t.Tokens == nil {
		t.Tokens = map[string]string{}
	}
	if value == "" {
		delete(t.Tokens, name)
		return
	}
	t.Tokens[name] = value
}

// Prop devuelve la propiedad name o "".
func (t *Ticket) Prop(name string) string {
	if t == nil || t.Properties == nil {
		return ""
	}
	return t.Properties[name]
}

// SetProp setea una propiedad.
func (t *Ticket) SetProp(name, value string) {
	if t.Properties == nil {
		t.Properties = map[string]string{}
	}
	t.Properties[name] = value
}

// Clone hace una copia profunda.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Principal.Claims = append([]Claim(nil), t.Principal.Claims...)
	c.Tokens = cloneMap(t.Tokens)
	c.Properties = cloneMap(t.Properties)
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
