package google

import (
	"net/http"
	"time"

	"github.com/calassist/calassist/internal/rest"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

const (
	maxPendingLogins = 64
	loginTimeout     = 10 * time.Minute
)

type authStatus struct {
	Status string `json:"status"`
}

// AuthHandler serves the browser side of the OAuth consent flow.
type AuthHandler struct {
	auth   *Auth
	nonces *expirable.LRU[string, struct{}]
}

func NewAuthHandler(auth *Auth) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		nonces: expirable.NewLRU[string, struct{}](maxPendingLogins, nil, loginTimeout),
	}
}

func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	stateNonce := uuid.New().String()
	h.nonces.Add(stateNonce, struct{}{})

	log.Tracef("Redirecting to Google auth URL with nonce: %s", stateNonce)
	http.Redirect(w, r, h.auth.AuthCodeURL(stateNonce), http.StatusFound)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.FormValue("state")
	if state == "" || !h.nonces.Remove(state) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid state", "the login link expired or was already used")
		return
	}
	if reason := r.FormValue("error"); reason != "" {
		rest.WriteError(w, http.StatusBadRequest, "Authorization denied", reason)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "code is required")
		return
	}

	if err := h.auth.Authorize(r.Context(), code); err != nil {
		log.Errorf("google authorization failed: %v", err)
		rest.WriteError(w, http.StatusBadGateway, "Failed to handle Google authentication", err.Error())
		return
	}
	log.Info("Stored Google oauth token")
	rest.WriteJSON(w, http.StatusOK, authStatus{Status: "authorized"})
}

func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Reset(r.Context()); err != nil {
		log.Errorf("failed to reset google authorization: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to reset Google authentication", err.Error())
		return
	}
	log.Info("Removed stored Google oauth token")
	rest.WriteJSON(w, http.StatusOK, authStatus{Status: "reset"})
}
