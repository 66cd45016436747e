package account

import (
	"context"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
)

// GetProfileQuery devuelve el usuario actual, sus logins y los providers
// disponibles para vincular.
type GetProfileQuery struct{}

func (GetProfileQuery) RequestType() string { return "account.get_profile" }

type ProfileUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	TenantID    string `json:"tenant_id,omitempty"`
}

type LinkedLogin struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Linked      bool   `json:"linked"`
}

type GetProfileResponse struct {
	dispatch.Response
	User      *ProfileUser   `json:"user,omitempty"`
	Logins    []LinkedLogin  `json:"logins,omitempty"`
	Providers []ProviderInfo `json:"providers,omitempty"`
	Roles     []string       `json:"roles,omitempty"`
	CanUnlink bool           `json:"can_unlink"`
}

func validateGetProfile(ctx context.Context, _ GetProfileQuery, u dispatch.CurrentUser) GetProfileResponse {
	var r GetProfileResponse
	if msg := authError(u); msg != "" {
		r.AddError(msg)
	}
	return r
}

func (s *service) getProfile(ctx context.Context, _ GetProfileQuery, u dispatch.CurrentUser) (GetProfileResponse, error) {
	var r GetProfileResponse
	user, err := s.Store.GetUserByID(ctx, u.UserID)
	if err != nil {
		return r, err
	}
	logins, err := s.Store.GetExternalLoginsForUser(ctx, u.UserID)
	if err != nil {
		return r, err
	}

	r.User = &ProfileUser{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName, TenantID: user.TenantID}
	r.Roles = u.Roles
	linked := make(map[string]bool, len(logins))
	for _, l := range logins {
		r.Logins = append(r.Logins, LinkedLogin{ID: l.ID, Provider: l.Provider})
		linked[l.Provider] = true
	}
	r.CanUnlink = len(logins) > 1
	if s.Providers != nil {
		for _, p := range s.Providers.All() {
			c := p.Config()
			name := c.DisplayName
			if name == "" {
				name = c.Name
			}
			r.Providers = append(r.Providers, ProviderInfo{Name: c.Name, DisplayName: name, Kind: string(c.Kind), Linked: linked[c.Name]})
		}
	}
	return r, nil
}
