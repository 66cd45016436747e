package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	acct "github.com/dropDatabas3/accountlink/internal/account"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	"github.com/dropDatabas3/accountlink/internal/linking"
)

// Link maneja GET /account/link/{provider}: challenge en modo linking con el
// usuario actual como destino.
func (c *Controllers) Link(w http.ResponseWriter, r *http.Request) {
	u := dispatch.CurrentUserFrom(r.Context())
	if !u.Authenticated {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	c.challenge(w, r, chi.URLParam(r, "provider"), ChallengeState{
		Return:  linking.LinkCallbackPath,
		Linking: true,
		Target:  u.UserID,
	})
}

// LinkCallback maneja GET /account/link-callback: vuelve al perfil con el
// resultado del linking.
func (c *Controllers) LinkCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result := q.Get("result")
	if result != string(linking.LinkSuccess) {
		result = string(linking.LinkError)
	}
	http.Redirect(w, r, helpers.WithQuery(ProfilePath, "result", result, "message", q.Get("message")), http.StatusFound)
}

// Unlink maneja GET /account/unlink/{provider}.
func (c *Controllers) Unlink(w http.ResponseWriter, r *http.Request) {
	resp, err := dispatch.Dispatch[acct.UnlinkProviderCommand, acct.UnlinkProviderResponse](
		r.Context(), c.Pipeline, acct.UnlinkProviderCommand{Provider: chi.URLParam(r, "provider")})
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, resp, resp.Result())
}
