package handlers

import (
	"errors"
	"net/http"

	"github.com/featherfeed/featherfeed-id/internal/httpapi"
	"github.com/featherfeed/featherfeed-id/internal/identity"
	"github.com/featherfeed/featherfeed-id/internal/observability/logger"
	"github.com/featherfeed/featherfeed-id/internal/store"
)

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ScreenName string `json:"screenName"`
}

type accountResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	ScreenName string `json:"screenName,omitempty"`
}

// CreateSession signs a user in with local credentials and issues a
// session token.
func (h *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !httpapi.ReadJSON(w, r, &req) {
		return
	}

	account, err := h.resolver.AuthenticateLocal(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) || errors.Is(err, identity.ErrBadPassword) {
			httpapi.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "username or password is wrong")
			return
		}
		logger.From(r.Context()).Error("local sign-in failed", logger.Err(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not sign in")
		return
	}

	token, err := h.issuer.Sign(account.ID)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue session")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"authToken": token,
		"user":      toAccountResponse(account),
	})
}

// Register provisions an account from explicit credentials. Unlike the
// provider flow, the username is caller-chosen and there is no suffix
// fallback on collision.
func (h *API) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpapi.ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	account, err := h.resolver.RegisterLocal(r.Context(), req.Username, req.Email, req.Password, req.ScreenName)
	if err != nil {
		if errors.Is(err, identity.ErrUsernameTaken) {
			httpapi.WriteError(w, http.StatusConflict, "username_taken", "that username is already in use")
			return
		}
		logger.From(r.Context()).Error("registration failed", logger.Username(req.Username), logger.Err(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not register")
		return
	}

	token, err := h.issuer.Sign(account.ID)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue session")
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"authToken": token,
		"user":      toAccountResponse(account),
	})
}

// AuthMethods lists the provider identities linked to the signed-in
// account.
func (h *API) AuthMethods(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(r)
	if account == nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "sign in first")
		return
	}
	methods, err := h.resolver.Ledger().List(r.Context(), account.ID)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "server_error", "could not list auth methods")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"authMethods": methods})
}

// WhoAmI returns the account behind the presented session token.
func (h *API) WhoAmI(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(r)
	if account == nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "sign in first")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"user": toAccountResponse(account)})
}

func toAccountResponse(a *store.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		ScreenName: a.ScreenName,
	}
}
