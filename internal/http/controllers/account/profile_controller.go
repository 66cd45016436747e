package account

import (
	"net/http"

	acct "github.com/dropDatabas3/accountlink/internal/account"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/session"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

type profileView struct {
	acct.GetProfileResponse
	Result  string `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// Profile maneja GET /account/profile.
func (c *Controllers) Profile(w http.ResponseWriter, r *http.Request) {
	resp, err := dispatch.Dispatch[acct.GetProfileQuery, acct.GetProfileResponse](r.Context(), c.Pipeline, acct.GetProfileQuery{})
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	q := r.URL.Query()
	writeResponse(w, http.StatusOK, profileView{GetProfileResponse: resp, Result: q.Get("result"), Message: q.Get("message")}, resp.Result())
}

// CreateTenant maneja POST /account/tenant. Con éxito re-estampa el claim tid
// de la sesión actual.
func (c *Controllers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var cmd acct.CreateTenantCommand
	if !helpers.ReadJSON(w, r, &cmd) {
		return
	}
	ctx := r.Context()
	resp, err := dispatch.Dispatch[acct.CreateTenantCommand, acct.CreateTenantResponse](ctx, c.Pipeline, cmd)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	if resp.Success() {
		if s := session.FromContext(ctx); s != nil {
			stamp := func(t *ticket.Ticket) { t.Principal.Replace(ticket.ClaimTenant, resp.TenantID) }
			if err := c.Sessions.Update(ctx, s, stamp); err != nil {
				logger.From(ctx).Warn("tenant claim not persisted", logger.TenantID(resp.TenantID), logger.Err(err))
			}
		}
	}
	writeResponse(w, http.StatusCreated, resp, resp.Result())
}

// Logout maneja GET /account/logout.
func (c *Controllers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.Sessions.SignOut(r.Context(), w, r); err != nil {
		logger.From(r.Context()).Warn("ticket removal failed", logger.Err(err))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
