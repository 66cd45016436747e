// Package api contiene los endpoints para clientes con bearer token.
package api

import (
	"net/http"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	mw "github.com/dropDatabas3/accountlink/internal/http/middlewares"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

type meResponse struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
	Provider string   `json:"provider,omitempty"`
	AuthType string   `json:"auth_type"`
}

// Me maneja GET /api/me.
func Me(w http.ResponseWriter, r *http.Request) {
	u := dispatch.CurrentUserFrom(r.Context())
	p := mw.GetPrincipal(r.Context())
	if !u.Authenticated || p == nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, meResponse{
		UserID:   u.UserID,
		TenantID: u.TenantID,
		Email:    p.FindFirst(ticket.ClaimEmail),
		Name:     p.FindFirst(ticket.ClaimName),
		Roles:    append([]string{}, u.Roles...),
		Provider: p.FindFirst(ticket.ClaimProvider),
		AuthType: p.AuthenticationType,
	})
}
