// Package scheme elige qué provider debe verificar una credencial bearer
// entrante, comparando el issuer del token contra las authorities
// configuradas. No verifica firmas: eso lo hace el provider elegido.
package scheme

import (
	"errors"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/accountlink/internal/providers"
)

var (
	ErrUnsupportedScheme = errors.New("scheme: missing or unsupported authorization scheme")
	ErrUnparsableToken   = errors.New("scheme: unparsable bearer token")
	ErrNoProviderMatch   = errors.New("scheme: no provider matches token issuer")
)

type target struct {
	name      string
	authority string
}

// Router es inmutable; el orden es el de configuración.
type Router struct {
	targets []target
	parser  *jwtv5.Parser
}

// NewRouter toma los providers con authority no vacía, en orden.
func NewRouter(cfgs []providers.Config) *Router {
	r := &Router{parser: jwtv5.NewParser()}
	for _, c := range cfgs {
		if strings.TrimSpace(c.Authority) == "" {
			continue
		}
		r.targets = append(r.targets, target{name: c.Name, authority: c.Authority})
	}
	return r
}

// Select devuelve el nombre del provider cuya authority es prefijo del issuer.
// Gana el primero en orden de configuración.
func (r *Router) Select(authorization string) (string, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return "", err
	}
	iss, err := r.issuer(raw)
	if err != nil {
		return "", err
	}
	for _, t := range r.targets {
		if strings.HasPrefix(iss, t.authority) {
			return t.name, nil
		}
	}
	return "", ErrNoProviderMatch
}

// BearerToken extrae la credencial de un header "Bearer <token>".
// El esquema es case-insensitive.
func BearerToken(authorization string) (string, error) {
	scheme, cred, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnsupportedScheme
	}
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return "", ErrUnparsableToken
	}
	return cred, nil
}

func (r *Router) issuer(raw string) (string, error) {
	claims := jwtv5.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(raw, claims); err != nil {
		return "", ErrUnparsableToken
	}
	iss, err := claims.GetIssuer()
	if err != nil || iss == "" {
		return "", ErrUnparsableToken
	}
	return iss, nil
}
