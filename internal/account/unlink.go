package account

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/linking"
)

// UnlinkProviderCommand quita el login de Provider del usuario actual.
type UnlinkProviderCommand struct {
	Provider string `json:"provider"`
}

func (UnlinkProviderCommand) RequestType() string { return "account.unlink_provider" }

type UnlinkProviderResponse struct {
	dispatch.Response
	Provider string `json:"provider,omitempty"`
}

func (s *service) validateUnlink(ctx context.Context, c UnlinkProviderCommand, u dispatch.CurrentUser) UnlinkProviderResponse {
	var r UnlinkProviderResponse
	switch {
	case authError(u) != "":
		r.AddError(authError(u))
	case strings.TrimSpace(c.Provider) == "":
		r.AddError(MsgProviderRequired)
	case s.Providers != nil && !s.Providers.Has(c.Provider):
		r.AddError(MsgUnknownProvider)
	}
	return r
}

// unlink traduce los rechazos de dominio a errores de la respuesta; no son
// errores de ejecución.
func (s *service) unlink(ctx context.Context, c UnlinkProviderCommand, u dispatch.CurrentUser) (UnlinkProviderResponse, error) {
	r := UnlinkProviderResponse{Provider: c.Provider}
	err := s.Unlinker.Unlink(ctx, u.UserID, c.Provider)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, linking.ErrLastLogin):
		r.AddError(MsgLastLogin)
		return r, nil
	case errors.Is(err, linking.ErrLoginNotFound):
		r.AddError(MsgNotLinked)
		return r, nil
	}
	return r, err
}
