// Package admin contiene los controllers de /admin. Todas las rutas exigen
// el rol Admin en el router; los validators lo vuelven a chequear.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	acct "github.com/dropDatabas3/accountlink/internal/account"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
)

type Controllers struct {
	pipeline *dispatch.Pipeline
}

func New(p *dispatch.Pipeline) *Controllers {
	return &Controllers{pipeline: p}
}

func write(w http.ResponseWriter, resp any, result dispatch.Response) {
	helpers.WriteJSON(w, httperrors.ResultStatus(result.Success(), http.StatusOK), resp)
}

// Secret maneja GET /admin/secret.
func (c *Controllers) Secret(w http.ResponseWriter, r *http.Request) {
	resp, err := dispatch.Dispatch[acct.AdminSecretQuery, acct.AdminSecretResponse](r.Context(), c.pipeline, acct.AdminSecretQuery{})
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	write(w, resp, resp.Result())
}

type assignRoleBody struct {
	Role string `json:"role"`
}

// AssignRole maneja POST /admin/users/{id}/roles.
func (c *Controllers) AssignRole(w http.ResponseWriter, r *http.Request) {
	var body assignRoleBody
	if !helpers.ReadJSON(w, r, &body) {
		return
	}
	cmd := acct.AssignRoleCommand{UserID: chi.URLParam(r, "id"), Role: body.Role}
	resp, err := dispatch.Dispatch[acct.AssignRoleCommand, acct.AssignRoleResponse](r.Context(), c.pipeline, cmd)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	write(w, resp, resp.Result())
}
