// Package account contiene los controllers de /account: login con
// providers externos, callback, vinculación, perfil y logout.
package account

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	"github.com/dropDatabas3/accountlink/internal/linking"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/session"
)

// Rutas fijas del flujo.
const (
	LoginPath     = "/account/login"
	CallbackPath  = "/account/callback/"
	PostLoginPath = "/account/postlogin"
	ProfilePath   = "/account/profile"
)

// CallbackHandler es linking.Coordinator.
type CallbackHandler interface {
	HandleProviderCallback(ctx context.Context, a providers.Assertion, st linking.RequestState) linking.Outcome
}

// Deps de los controllers de cuenta.
type Deps struct {
	Providers   *providers.Registry
	Coordinator CallbackHandler
	Sessions    *session.Manager
	Pipeline    *dispatch.Pipeline
	State       *StateCodec
	// PublicURL es la base externa del servicio (para redirect URIs).
	PublicURL     string
	SecureCookies bool
}

// Controllers agrupa los handlers de /account.
type Controllers struct {
	Deps
}

func New(d Deps) *Controllers {
	d.PublicURL = strings.TrimRight(d.PublicURL, "/")
	return &Controllers{Deps: d}
}

func (c *Controllers) redirectURI(provider string) string {
	return c.PublicURL + CallbackPath + provider
}

// writeResponse traduce un Response del pipeline: 422 si tiene errores.
func writeResponse(w http.ResponseWriter, status int, resp any, result dispatch.Response) {
	helpers.WriteJSON(w, httperrors.ResultStatus(result.Success(), status), resp)
}

func (c *Controllers) provider(w http.ResponseWriter, name string) (providers.Provider, bool) {
	p, err := c.Providers.Get(name)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrProviderNotFound.WithDetail(name))
		return nil, false
	}
	return p, true
}
