package account

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/accountlink/internal/dispatch"
	httperrors "github.com/dropDatabas3/accountlink/internal/http/errors"
	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	"github.com/dropDatabas3/accountlink/internal/linking"
	"github.com/dropDatabas3/accountlink/internal/metrics"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/session"
	"github.com/dropDatabas3/accountlink/internal/ticket"
)

type providerItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	LoginURL    string `json:"login_url"`
}

// ListProviders maneja GET /account/login: lista los providers configurados.
func (c *Controllers) ListProviders(w http.ResponseWriter, r *http.Request) {
	ret := r.URL.Query().Get("returnUrl")
	items := make([]providerItem, 0)
	for _, p := range c.Providers.All() {
		cfg := p.Config()
		name := cfg.DisplayName
		if name == "" {
			name = cfg.Name
		}
		items = append(items, providerItem{
			Name:        cfg.Name,
			DisplayName: name,
			Kind:        string(cfg.Kind),
			LoginURL:    helpers.WithQuery(LoginPath+"/"+cfg.Name, "returnUrl", ret),
		})
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"providers": items})
}

// Login maneja GET /account/login/{provider}: redirige al provider.
func (c *Controllers) Login(w http.ResponseWriter, r *http.Request) {
	ret := helpers.SafeLocalPath(r.URL.Query().Get("returnUrl"), PostLoginPath)
	c.challenge(w, r, chi.URLParam(r, "provider"), ChallengeState{Return: ret})
}

// challenge emite el state, setea la cookie de correlación y redirige.
func (c *Controllers) challenge(w http.ResponseWriter, r *http.Request, name string, st ChallengeState) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("account.challenge"), logger.Provider(name))

	p, ok := c.provider(w, name)
	if !ok {
		return
	}
	st.Provider = name
	signed, corr, err := c.State.Issue(st)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	parsed, err := c.State.Parse(signed, name)
	if err != nil {
		httperrors.WriteErrorCtx(w, r, err)
		return
	}
	target, err := p.BuildChallenge(ctx, signed, parsed.Nonce, c.redirectURI(name))
	if err != nil {
		log.Error("build challenge failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CorrelationCookieName(parsed),
		Value:    corr,
		Path:     CallbackPath + name,
		MaxAge:   int(c.State.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	log.Debug("challenge issued", logger.Bool("linking", st.Linking))
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback maneja GET /account/callback/{provider}: canjea el code, corre el
// coordinador y traduce el Outcome.
func (c *Controllers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("account.callback"), logger.Provider(name))

	p, ok := c.provider(w, name)
	if !ok {
		return
	}
	q := r.URL.Query()
	st, err := c.State.Parse(strings.TrimSpace(q.Get("state")), name)
	if err != nil {
		log.Warn("invalid state", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidState)
		return
	}
	ck, _ := r.Cookie(CorrelationCookieName(st))
	http.SetCookie(w, &http.Cookie{Name: CorrelationCookieName(st), Path: CallbackPath + name, MaxAge: -1, HttpOnly: true, Secure: c.SecureCookies})
	if ck == nil || !st.CheckCorrelation(ck.Value) {
		log.Warn("correlation cookie missing or mismatched")
		httperrors.WriteError(w, httperrors.ErrInvalidState.WithDetail("correlation failed"))
		return
	}

	if idpErr := strings.TrimSpace(q.Get("error")); idpErr != "" {
		log.Warn("provider returned error", logger.String("error", idpErr), logger.String("description", q.Get("error_description")))
		c.finishFailure(w, r, name, st, httperrors.ErrProviderError.WithDetail(idpErr))
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("code required"))
		return
	}

	a, err := p.Authenticate(ctx, code, st.Nonce, c.redirectURI(name))
	if err != nil {
		log.Warn("authenticate failed", logger.Err(err))
		c.finishFailure(w, r, name, st, httperrors.ErrAuthenticationFailed.WithCause(err))
		return
	}

	rs := linking.RequestState{Linking: st.Linking, TargetUserID: st.Target}
	if st.Linking {
		// el state de linking sólo vale para la sesión que lo pidió
		if cur := dispatch.CurrentUserFrom(ctx); !cur.Authenticated || cur.UserID != st.Target {
			log.Warn("linking state does not match current session")
			c.finishFailure(w, r, name, st, httperrors.ErrUnauthorized)
			return
		}
	}

	out := c.Coordinator.HandleProviderCallback(ctx, *a, rs)
	metrics.ProviderCallbackTotal.WithLabelValues(name, outcomeLabel(out)).Inc()

	switch out.Kind {
	case linking.KindSignIn:
		t := c.buildTicket(ctx, p, a, out.Principal)
		// una sesión previa no sobrevive a un login nuevo
		_ = c.Sessions.SignOut(ctx, w, r)
		if _, err := c.Sessions.SignIn(ctx, w, t); err != nil {
			httperrors.WriteErrorCtx(w, r, err)
			return
		}
		http.Redirect(w, r, helpers.SafeLocalPath(st.Return, PostLoginPath), http.StatusFound)
	case linking.KindRedirect:
		http.Redirect(w, r, helpers.WithQuery(out.Path, "result", string(out.Link), "message", out.Message), http.StatusFound)
	default:
		status := httperrors.ErrAuthenticationFailed
		if errors.Is(out.Err, linking.ErrUserInactive) {
			status = httperrors.ErrForbidden.WithDetail("account disabled")
		}
		c.finishFailure(w, r, name, st, status.WithCause(out.Err))
	}
}

// finishFailure: en modo linking siempre se vuelve al link-callback con
// LinkError; en login se responde el error.
func (c *Controllers) finishFailure(w http.ResponseWriter, r *http.Request, name string, st *ChallengeState, appErr *httperrors.AppError) {
	if st.Linking {
		metrics.ProviderCallbackTotal.WithLabelValues(name, string(linking.LinkError)).Inc()
		http.Redirect(w, r, helpers.WithQuery(linking.LinkCallbackPath, "result", string(linking.LinkError), "message", "Could not link "+name+"."), http.StatusFound)
		return
	}
	httperrors.WriteErrorCtx(w, r, appErr)
}

func outcomeLabel(o linking.Outcome) string {
	if o.Kind == linking.KindRedirect {
		return string(o.Link)
	}
	return o.Kind.String()
}

// tokenEndpointResolver lo implementa OIDCProvider (endpoint de discovery).
type tokenEndpointResolver interface {
	TokenEndpoint(ctx context.Context) (string, error)
}

// buildTicket arma el ticket con los tokens del provider y lo que necesita
// el refresh.
func (c *Controllers) buildTicket(ctx context.Context, p providers.Provider, a *providers.Assertion, principal ticket.Principal) *ticket.Ticket {
	cfg := p.Config()
	t := &ticket.Ticket{Principal: principal}
	t.SetToken(ticket.TokenAccess, a.Tokens.AccessToken)
	t.SetToken(ticket.TokenID, a.Tokens.IDToken)
	t.SetToken(ticket.TokenRefresh, a.Tokens.RefreshToken)
	if !a.Tokens.ExpiresAt.IsZero() {
		t.SetToken(ticket.TokenExpiresAt, a.Tokens.ExpiresAt.UTC().Format(time.RFC3339))
	}

	endpoint := cfg.TokenEndpoint
	if ter, ok := p.(tokenEndpointResolver); ok {
		if ep, err := ter.TokenEndpoint(ctx); err == nil {
			endpoint = ep
		}
	}
	t.SetProp(ticket.PropProvider, cfg.Name)
	t.SetProp(ticket.PropClientID, cfg.ClientID)
	t.SetProp(ticket.PropClientSecret, cfg.ClientSecret)
	t.SetProp(ticket.PropTokenEndpoint, endpoint)
	return t
}

type postLoginView struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Roles     []string `json:"roles"`
	Provider  string   `json:"provider,omitempty"`
	ExpiresAt string   `json:"token_expires_at,omitempty"`
}

// PostLogin maneja GET /account/postlogin: resumen de la sesión.
func (c *Controllers) PostLogin(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	pr := s.Ticket.Principal
	helpers.WriteJSON(w, http.StatusOK, postLoginView{
		UserID:    pr.FindFirst(ticket.ClaimSubject),
		Email:     pr.FindFirst(ticket.ClaimEmail),
		Name:      pr.FindFirst(ticket.ClaimName),
		TenantID:  pr.FindFirst(ticket.ClaimTenant),
		Roles:     append([]string{}, pr.FindAll(ticket.ClaimRole)...),
		Provider:  pr.FindFirst(ticket.ClaimProvider),
		ExpiresAt: s.Ticket.Token(ticket.TokenExpiresAt),
	})
}
