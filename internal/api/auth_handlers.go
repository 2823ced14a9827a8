package api

import (
	"log"
	"net/http"

	"github.com/google/uuid"
)

// AuthURL handles GET /auth/url. The operator opens the returned URL in a
// browser to grant upload access; Google then redirects to the callback.
func (h *Handler) AuthURL(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()
	respondJSON(w, http.StatusOK, map[string]string{
		"url":   h.creds.AuthURL(state),
		"state": state,
	})
}

// OAuthCallback handles GET /oauth2callback, the redirect target of the
// consent flow. On success the exchanged tokens are persisted and every
// subsequent publish uses them.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, "Authorization denied: "+errMsg)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	if err := h.creds.Exchange(r.Context(), code); err != nil {
		log.Printf("[API] oauth exchange failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to exchange authorization code")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "authorized, you can close this tab",
	})
}
