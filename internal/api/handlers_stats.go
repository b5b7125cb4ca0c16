package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/types"
)

// handleWeeks returns a user's runs grouped into Monday-anchored weeks
func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	groups, err := s.statsService.WeeklyGroups(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"weeks": groups})
}

// handleMonths returns a user's runs grouped by month, optionally filtered
// by club
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	clubName := s.resolveClub(r.URL.Query().Get("club"))

	groups, err := s.statsService.MonthlyGroups(r.Context(), userID, clubName)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"months": groups})
}

// handleStreak returns a user's longest consecutive-day run streak
func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := s.statsService.Streak(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"streak": streak})
}

// handleUserClubs returns the clubs a user's runs fall into
func (s *Server) handleUserClubs(w http.ResponseWriter, r *http.Request) {
	userClubs, err := s.statsService.UserClubs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if userClubs == nil {
		userClubs = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"clubs": userClubs})
}

// clubView is one configured club in the clubs listing
type clubView struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// handleListClubs returns the configured clubs
func (s *Server) handleListClubs(w http.ResponseWriter, r *http.Request) {
	views := make([]clubView, 0, len(s.clubNames))
	for _, name := range s.clubNames {
		views = append(views, clubView{Name: name, Slug: clubs.NameToSlug(name)})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"clubs": views})
}

// handleLeaderboard returns the monthly leaderboards for one club and year.
// Months come back newest first unless order=asc is requested.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	clubName := s.resolveClub(mux.Vars(r)["club"])
	q := r.URL.Query()

	year := time.Now().UTC().Year()
	if yearParam := q.Get("year"); yearParam != "" {
		parsed, err := strconv.Atoi(yearParam)
		if err != nil || parsed < 2000 || parsed > 2200 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
				"invalid 'year' parameter", nil)
			return
		}
		year = parsed
	}

	order := types.MonthDescending
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		order = types.MonthAscending
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"invalid 'order' parameter, expected 'asc' or 'desc'", nil)
		return
	}

	board, err := s.statsService.ClubLeaderboard(r.Context(), clubName, year, order)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if board == nil {
		board = []types.MonthLeaderboard{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"club":   clubName,
		"year":   year,
		"months": board,
	})
}
