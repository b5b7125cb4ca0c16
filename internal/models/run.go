package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is a persisted running activity belonging to a user. One row per
// (user, Strava activity id); re-syncing the same activity updates the row
// in place.
type Run struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	StravaActivityID int64           `json:"stravaActivityId"`
	Name             string          `json:"name"`
	Distance         float64         `json:"distance"`   // meters
	MovingTime       int             `json:"movingTime"` // seconds
	ElapsedTime      int             `json:"elapsedTime"`
	ElevationGain    float64         `json:"elevationGain"`
	StartDate        time.Time       `json:"startDate"`      // UTC instant
	StartDateLocal   time.Time       `json:"startDateLocal"` // athlete's wall clock
	Timezone         string          `json:"timezone"`
	AverageSpeed     float64         `json:"averageSpeed"` // m/s
	MaxSpeed         float64         `json:"maxSpeed"`
	LocationCity     string          `json:"locationCity,omitempty"`
	LocationCountry  string          `json:"locationCountry,omitempty"`
	ClubName         string          `json:"clubName,omitempty"` // empty means unclassified
	RawPayload       json.RawMessage `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewRunFromActivity builds a Run ready for upsert from a parsed activity
func NewRunFromActivity(userID string, a *ActivityRecord) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:               uuid.New().String(),
		UserID:           userID,
		StravaActivityID: a.ID,
		Name:             a.Name,
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		ElevationGain:    a.TotalElevationGain,
		StartDate:        a.StartDate,
		StartDateLocal:   a.StartDateLocal,
		Timezone:         a.Timezone,
		AverageSpeed:     a.AverageSpeed,
		MaxSpeed:         a.MaxSpeed,
		LocationCity:     a.LocationCity,
		LocationCountry:  a.LocationCountry,
		ClubName:         a.ClubName,
		RawPayload:       a.Raw,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// DistanceKm returns the run distance in kilometers
func (r *Run) DistanceKm() float64 {
	return r.Distance / 1000.0
}

// PacePerKm returns the average pace in seconds per kilometer. A run with zero
// distance has no meaningful pace and returns 0 rather than dividing by zero.
func (r *Run) PacePerKm() float64 {
	km := r.DistanceKm()
	if km <= 0 {
		return 0
	}
	return float64(r.MovingTime) / km
}

// LocalDate returns the calendar date of the run in the athlete's local zone
func (r *Run) LocalDate() time.Time {
	y, m, d := r.StartDateLocal.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDuration renders seconds as "MM:SS" under an hour, "H:MM:SS" above
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPace renders a pace in seconds per kilometer as "M:SS/km".
// A zero pace (zero-distance run) renders as "-".
func FormatPace(secondsPerKm float64) string {
	if secondsPerKm <= 0 {
		return "-"
	}
	total := int(secondsPerKm + 0.5)
	return fmt.Sprintf("%d:%02d/km", total/60, total%60)
}
