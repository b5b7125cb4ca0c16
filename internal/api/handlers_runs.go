package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/strava-board/internal/clubs"
)

// syncRequest is the optional body for a sync trigger
type syncRequest struct {
	// Since overrides the default sync window start, RFC3339
	Since string `json:"since,omitempty"`
}

// handleSync triggers a sync for one user
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var since time.Time
	var req syncRequest
	if err := parseJSONBody(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"invalid request body: "+err.Error(), nil)
		return
	}
	if req.Since != "" {
		parsed, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
				"invalid 'since' timestamp, expected RFC3339", nil)
			return
		}
		since = parsed
	}

	result, err := s.syncService.SyncByID(r.Context(), userID, since)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleGetUser returns one user's profile
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.statsService.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleListRuns returns a user's runs, optionally filtered by club
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	clubName := s.resolveClub(r.URL.Query().Get("club"))

	runs, err := s.statsService.ListRuns(r.Context(), userID, clubName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleReclassify re-runs the classifier over one user's stored runs
func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	changed, err := s.syncService.ReclassifyUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

// resolveClub maps a club query value, slug or exact name, onto the
// configured club name. Unknown values pass through unchanged and simply
// match no runs.
func (s *Server) resolveClub(param string) string {
	if param == "" {
		return ""
	}
	for _, name := range s.clubNames {
		if name == param || clubs.NameToSlug(name) == param {
			return name
		}
	}
	return param
}
