// Package handlers implements the OAuth popup flow endpoints and local
// credential endpoints over the identity engine.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/featherfeed/featherfeed-id/internal/httpapi"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/popup"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/state"
	"github.com/featherfeed/featherfeed-id/internal/identity"
	"github.com/featherfeed/featherfeed-id/internal/oauth"
	"github.com/featherfeed/featherfeed-id/internal/observability/logger"
	"github.com/featherfeed/featherfeed-id/internal/security/tokens"
	"github.com/featherfeed/featherfeed-id/internal/session"
	"github.com/featherfeed/featherfeed-id/internal/store"
)

// Deps wires the handlers to their collaborators.
type Deps struct {
	Providers oauth.Providers
	Resolver  *identity.Resolver
	Store     store.AccountStore
	Signer    *state.Signer
	Issuer    *session.Issuer
}

type API struct {
	providers oauth.Providers
	resolver  *identity.Resolver
	store     store.AccountStore
	signer    *state.Signer
	issuer    *session.Issuer
}

func New(d Deps) *API {
	return &API{
		providers: d.Providers,
		resolver:  d.Resolver,
		store:     d.Store,
		signer:    d.Signer,
		issuer:    d.Issuer,
	}
}

// Start begins the login flow: capture the initiating origin into the
// capability token and redirect to the provider.
func (h *API) Start(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, state.ModeLogin)
}

// StartAuthz begins the re-authorization flow for an already-linked
// provider identity.
func (h *API) StartAuthz(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, state.ModeAuthz)
}

func (h *API) start(w http.ResponseWriter, r *http.Request, mode state.Mode) {
	p, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "unknown_provider", "provider not configured")
		return
	}
	if mode == state.ModeAuthz && !p.SupportsAuthz {
		httpapi.WriteError(w, http.StatusNotFound, "unknown_provider", "provider does not support re-authorization")
		return
	}

	// The provider redirect cannot carry a session, so any session present
	// at flow start is bound into the state token. For login mode it turns
	// the callback into a link operation; for authz mode it is required.
	var accountID string
	if account := h.currentAccount(r); account != nil {
		accountID = account.ID
	}
	if mode == state.ModeAuthz && accountID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "sign in before re-authorizing a provider")
		return
	}

	nonce, err := tokens.GenerateOpaque(16)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not start flow")
		return
	}
	// The origin the popup result may be delivered to. Captured here, at
	// flow start, and carried inside the signed state; the callback never
	// trusts request headers for it.
	stateToken, err := h.signer.Sign(state.Claims{
		Provider:  p.Name,
		Origin:    r.URL.Query().Get("origin"),
		Mode:      mode,
		Nonce:     nonce,
		AccountID: accountID,
	})
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not sign state")
		return
	}

	cfg := p.Config
	var opts []oauth2.AuthCodeOption
	if mode == state.ModeAuthz {
		cfg = p.AuthzConfig
		opts = p.AuthzOptions
	}
	http.Redirect(w, r, cfg.AuthCodeURL(stateToken, opts...), http.StatusFound)
}

// Callback completes the login flow: verify the capability token, exchange
// the code, fetch the profile, resolve, and hand the outcome to the popup.
func (h *API) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("handler"), logger.Component("oauth.callback"))

	p, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "unknown_provider", "provider not configured")
		return
	}

	claims, origin, ok := h.verifyState(w, r, p.Name, state.ModeLogin)
	if !ok {
		return
	}

	profile, token, err := h.completeHandshake(r, p, p.Config)
	if err != nil {
		log.Warn("handshake failed", logger.Provider(p.Name), logger.Err(err))
		httpapi.ObserveResolution(p.Name, "error")
		popup.Write(w, popup.ErrorPayload(err), origin)
		return
	}

	var sessionAccount *store.Account
	if claims.AccountID != "" {
		if sessionAccount, err = h.store.GetByID(r.Context(), claims.AccountID); err != nil {
			popup.Write(w, map[string]string{"error": "Unauthorized"}, origin)
			return
		}
	}

	outcome, err := h.resolver.Resolve(r.Context(), sessionAccount, profile, token)
	if err != nil {
		log.Warn("resolution failed", logger.Provider(p.Name), logger.Err(err))
		httpapi.ObserveResolution(p.Name, "error")
		popup.Write(w, popup.ErrorPayload(err), origin)
		return
	}

	// Session-linked path: report the updated ledger instead of a token.
	if sessionAccount != nil {
		methods, err := h.resolver.Ledger().List(r.Context(), sessionAccount.ID)
		if err != nil {
			popup.Write(w, popup.ErrorPayload(err), origin)
			return
		}
		httpapi.ObserveResolution(p.Name, "linked")
		popup.Write(w, map[string]any{"authMethods": methods}, origin)
		return
	}

	authToken, err := h.issuer.Sign(outcome.Account.ID)
	if err != nil {
		popup.Write(w, popup.ErrorPayload(err), origin)
		return
	}

	result := "linked"
	if !outcome.Linked {
		result = "provisioned"
	}
	httpapi.ObserveResolution(p.Name, result)
	popup.Write(w, map[string]any{"authToken": authToken}, origin)
}

// AuthzCallback completes the re-authorization flow: the session user must
// already be linked to the returned provider identity; the refreshed
// (ideally long-lived) token is cached and returned.
func (h *API) AuthzCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("handler"), logger.Component("oauth.authz"))

	p, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok || !p.SupportsAuthz {
		httpapi.WriteError(w, http.StatusNotFound, "unknown_provider", "provider not configured")
		return
	}

	claims, origin, ok := h.verifyState(w, r, p.Name, state.ModeAuthz)
	if !ok {
		return
	}

	account, err := h.store.GetByID(r.Context(), claims.AccountID)
	if err != nil {
		popup.Write(w, map[string]string{"error": "Unauthorized"}, origin)
		return
	}

	profile, token, err := h.completeHandshake(r, p, p.AuthzConfig)
	if err != nil {
		log.Warn("handshake failed", logger.Provider(p.Name), logger.Err(err))
		popup.Write(w, popup.ErrorPayload(err), origin)
		return
	}

	out, err := h.resolver.ReAuthorize(r.Context(), account, profile, token, p.Exchanger)
	if err != nil {
		log.Warn("re-authorization rejected", logger.Provider(p.Name), logger.Err(err))
		popup.Write(w, popup.ErrorPayload(err), origin)
		return
	}

	payload := map[string]any{"accessToken": out.AccessToken}
	if out.ExchangeErr != nil {
		// Short-lived fallback: still a success, but the client learns why
		// the token will expire sooner than expected.
		payload["error"] = out.ExchangeErr.Error()
	}
	popup.Write(w, payload, origin)
}

// verifyState parses the round-trip capability. Failures before any origin
// is known answer with a plain error response, never a wildcard post.
func (h *API) verifyState(w http.ResponseWriter, r *http.Request, provider string, mode state.Mode) (*state.Claims, string, bool) {
	claims, err := h.signer.Parse(r.URL.Query().Get("state"), provider)
	if err != nil || claims.Mode != mode {
		httpapi.WriteError(w, http.StatusUnauthorized, "invalid_state", "state token invalid or expired")
		return nil, "", false
	}
	return claims, claims.Origin, true
}

// completeHandshake exchanges the authorization code and fetches the
// verified profile.
func (h *API) completeHandshake(r *http.Request, p *oauth.Provider, cfg *oauth2.Config) (*identity.ExternalProfile, string, error) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		return nil, "", providerError(errParam, r.URL.Query().Get("error_description"))
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, "", errMissingCode
	}

	tok, err := cfg.Exchange(r.Context(), code)
	if err != nil {
		return nil, "", err
	}
	profile, err := p.Profile.Fetch(r.Context(), tok.AccessToken)
	if err != nil {
		return nil, "", err
	}
	return profile, tok.AccessToken, nil
}

// currentAccount resolves the already-authenticated user from a bearer
// token, when one rode along with the popup request.
func (h *API) currentAccount(r *http.Request) *store.Account {
	raw := bearerToken(r)
	if raw == "" {
		return nil
	}
	id, err := h.issuer.Parse(raw)
	if err != nil {
		return nil
	}
	account, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return account
}
