package api

import (
	"net/http"
)

// handleLogin redirects the browser to the Strava authorization page
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	http.Redirect(w, r, s.authService.AuthorizeURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow when Strava redirects back
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"authorization was denied: "+errParam, nil)
		return
	}

	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"missing authorization code", nil)
		return
	}

	user, err := s.authService.HandleCallback(r.Context(), code)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
