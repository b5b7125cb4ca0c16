package models

import (
	"encoding/json"
	"time"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/errors"
)

// wireTimeLayout is the fixed timestamp format used by the Strava API for both
// the UTC and the local start date.
const wireTimeLayout = "2006-01-02T15:04:05Z"

// ActivityRecord is a strongly-typed activity parsed from a raw Strava payload.
//
// StartDate is a true UTC instant. StartDateLocal is the wall-clock time the
// source reported for the athlete's local zone, parsed verbatim with no offset
// applied; it carries UTC as its location only as a tag. Club classification
// runs against the local wall clock.
type ActivityRecord struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Distance           float64   `json:"distance"`    // meters
	MovingTime         int       `json:"moving_time"` // seconds
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`

	// Optional fields carried for archival; irrelevant to classification and
	// aggregation. Absent values take the documented defaults.
	SportType        string    `json:"sport_type"`
	WorkoutType      *int      `json:"workout_type,omitempty"`
	UTCOffset        float64   `json:"utc_offset"`
	LocationCity     string    `json:"location_city,omitempty"`
	LocationState    string    `json:"location_state,omitempty"`
	LocationCountry  string    `json:"location_country,omitempty"`
	StartLatLng      []float64 `json:"start_latlng,omitempty"`
	EndLatLng        []float64 `json:"end_latlng,omitempty"`
	AverageHeartrate *float64  `json:"average_heartrate,omitempty"`
	MaxHeartrate     *float64  `json:"max_heartrate,omitempty"`
	AverageCadence   *float64  `json:"average_cadence,omitempty"`
	AverageWatts     *float64  `json:"average_watts,omitempty"`
	MaxWatts         *float64  `json:"max_watts,omitempty"`
	WeightedWatts    *float64  `json:"weighted_average_watts,omitempty"`
	DeviceWatts      bool      `json:"device_watts"`
	Kilojoules       *float64  `json:"kilojoules,omitempty"`
	HasHeartrate     bool      `json:"has_heartrate"`
	ElevHigh         *float64  `json:"elev_high,omitempty"`
	ElevLow          *float64  `json:"elev_low,omitempty"`
	KudosCount       int       `json:"kudos_count"`
	CommentCount     int       `json:"comment_count"`
	AthleteCount     int       `json:"athlete_count"`
	PhotoCount       int       `json:"photo_count"`
	TotalPhotoCount  int       `json:"total_photo_count"`
	AchievementCount int       `json:"achievement_count"`
	PRCount          int       `json:"pr_count"`
	Trainer          bool      `json:"trainer"`
	Commute          bool      `json:"commute"`
	Manual           bool      `json:"manual"`
	Private          bool      `json:"private"`
	Flagged          bool      `json:"flagged"`
	HasKudoed        bool      `json:"has_kudoed"`
	Visibility       string    `json:"visibility"`
	GearID           *string   `json:"gear_id,omitempty"`
	UploadID         *int64    `json:"upload_id,omitempty"`
	ExternalID       *string   `json:"external_id,omitempty"`

	// ClubName is derived by the classifier at parse time, never supplied by
	// the source. Empty means the run matched no club rule.
	ClubName string `json:"-"`

	// Raw is the verbatim source payload, retained for archival and
	// re-classification without a network round-trip.
	Raw json.RawMessage `json:"-"`
}

// activityWire mirrors the Strava payload with pointer fields for everything
// the parser must verify is present.
type activityWire struct {
	ID                 *int64   `json:"id"`
	Name               *string  `json:"name"`
	Distance           *float64 `json:"distance"`
	MovingTime         *int     `json:"moving_time"`
	ElapsedTime        *int     `json:"elapsed_time"`
	TotalElevationGain *float64 `json:"total_elevation_gain"`
	Type               *string  `json:"type"`
	StartDate          *string  `json:"start_date"`
	StartDateLocal     *string  `json:"start_date_local"`
	Timezone           *string  `json:"timezone"`
	AverageSpeed       *float64 `json:"average_speed"`
	MaxSpeed           *float64 `json:"max_speed"`

	SportType        *string   `json:"sport_type"`
	WorkoutType      *int      `json:"workout_type"`
	UTCOffset        *float64  `json:"utc_offset"`
	LocationCity     *string   `json:"location_city"`
	LocationState    *string   `json:"location_state"`
	LocationCountry  *string   `json:"location_country"`
	StartLatLng      []float64 `json:"start_latlng"`
	EndLatLng        []float64 `json:"end_latlng"`
	AverageHeartrate *float64  `json:"average_heartrate"`
	MaxHeartrate     *float64  `json:"max_heartrate"`
	AverageCadence   *float64  `json:"average_cadence"`
	AverageWatts     *float64  `json:"average_watts"`
	MaxWatts         *float64  `json:"max_watts"`
	WeightedWatts    *float64  `json:"weighted_average_watts"`
	DeviceWatts      *bool     `json:"device_watts"`
	Kilojoules       *float64  `json:"kilojoules"`
	HasHeartrate     *bool     `json:"has_heartrate"`
	ElevHigh         *float64  `json:"elev_high"`
	ElevLow          *float64  `json:"elev_low"`
	KudosCount       *int      `json:"kudos_count"`
	CommentCount     *int      `json:"comment_count"`
	AthleteCount     *int      `json:"athlete_count"`
	PhotoCount       *int      `json:"photo_count"`
	TotalPhotoCount  *int      `json:"total_photo_count"`
	AchievementCount *int      `json:"achievement_count"`
	PRCount          *int      `json:"pr_count"`
	Trainer          *bool     `json:"trainer"`
	Commute          *bool     `json:"commute"`
	Manual           *bool     `json:"manual"`
	Private          *bool     `json:"private"`
	Flagged          *bool     `json:"flagged"`
	HasKudoed        *bool     `json:"has_kudoed"`
	Visibility       *string   `json:"visibility"`
	GearID           *string   `json:"gear_id"`
	UploadID         *int64    `json:"upload_id"`
	ExternalID       *string   `json:"external_id"`
}

// ParseActivity converts a raw Strava activity payload into an ActivityRecord.
// Any missing or wrongly-typed required field yields a MALFORMED_PAYLOAD error
// naming the field. Optional fields default to zero/false/nil. The classifier
// runs before the record is returned, so ClubName is always populated.
func ParseActivity(raw json.RawMessage, rules clubs.RuleSet) (*ActivityRecord, error) {
	var wire activityWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		field := "payload"
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
			field = typeErr.Field
		}
		return nil, errors.NewMalformedPayloadError(field, err)
	}

	if field, ok := missingRequiredField(&wire); ok {
		return nil, errors.NewMalformedPayloadError(field, nil)
	}

	startDate, err := time.Parse(wireTimeLayout, *wire.StartDate)
	if err != nil {
		return nil, errors.NewMalformedPayloadError("start_date", err)
	}
	// The local string is trusted verbatim: parsed as wall clock, no offset
	// applied. This mirrors the source behavior.
	startDateLocal, err := time.Parse(wireTimeLayout, *wire.StartDateLocal)
	if err != nil {
		return nil, errors.NewMalformedPayloadError("start_date_local", err)
	}

	rec := &ActivityRecord{
		ID:                 *wire.ID,
		Name:               *wire.Name,
		Distance:           *wire.Distance,
		MovingTime:         *wire.MovingTime,
		ElapsedTime:        *wire.ElapsedTime,
		TotalElevationGain: *wire.TotalElevationGain,
		Type:               *wire.Type,
		StartDate:          startDate.UTC(),
		StartDateLocal:     startDateLocal,
		Timezone:           *wire.Timezone,
		AverageSpeed:       *wire.AverageSpeed,
		MaxSpeed:           *wire.MaxSpeed,

		SportType:        stringOr(wire.SportType, "Run"),
		WorkoutType:      wire.WorkoutType,
		UTCOffset:        floatOr(wire.UTCOffset, 0),
		LocationCity:     stringOr(wire.LocationCity, ""),
		LocationState:    stringOr(wire.LocationState, ""),
		LocationCountry:  stringOr(wire.LocationCountry, ""),
		StartLatLng:      wire.StartLatLng,
		EndLatLng:        wire.EndLatLng,
		AverageHeartrate: wire.AverageHeartrate,
		MaxHeartrate:     wire.MaxHeartrate,
		AverageCadence:   wire.AverageCadence,
		AverageWatts:     wire.AverageWatts,
		MaxWatts:         wire.MaxWatts,
		WeightedWatts:    wire.WeightedWatts,
		DeviceWatts:      boolOr(wire.DeviceWatts),
		Kilojoules:       wire.Kilojoules,
		HasHeartrate:     boolOr(wire.HasHeartrate),
		ElevHigh:         wire.ElevHigh,
		ElevLow:          wire.ElevLow,
		KudosCount:       intOr(wire.KudosCount, 0),
		CommentCount:     intOr(wire.CommentCount, 0),
		AthleteCount:     intOr(wire.AthleteCount, 1),
		PhotoCount:       intOr(wire.PhotoCount, 0),
		TotalPhotoCount:  intOr(wire.TotalPhotoCount, 0),
		AchievementCount: intOr(wire.AchievementCount, 0),
		PRCount:          intOr(wire.PRCount, 0),
		Trainer:          boolOr(wire.Trainer),
		Commute:          boolOr(wire.Commute),
		Manual:           boolOr(wire.Manual),
		Private:          boolOr(wire.Private),
		Flagged:          boolOr(wire.Flagged),
		HasKudoed:        boolOr(wire.HasKudoed),
		Visibility:       stringOr(wire.Visibility, "everyone"),
		GearID:           wire.GearID,
		UploadID:         wire.UploadID,
		ExternalID:       wire.ExternalID,

		Raw: raw,
	}

	if club, ok := clubs.Classify(rec.StartDateLocal, rec.Location(), rules); ok {
		rec.ClubName = club
	}

	return rec, nil
}

// missingRequiredField returns the name of the first absent required field
func missingRequiredField(w *activityWire) (string, bool) {
	checks := []struct {
		name    string
		present bool
	}{
		{"id", w.ID != nil},
		{"name", w.Name != nil},
		{"distance", w.Distance != nil},
		{"moving_time", w.MovingTime != nil},
		{"elapsed_time", w.ElapsedTime != nil},
		{"total_elevation_gain", w.TotalElevationGain != nil},
		{"type", w.Type != nil},
		{"start_date", w.StartDate != nil},
		{"start_date_local", w.StartDateLocal != nil},
		{"timezone", w.Timezone != nil},
		{"average_speed", w.AverageSpeed != nil},
		{"max_speed", w.MaxSpeed != nil},
	}
	for _, c := range checks {
		if !c.present {
			return c.name, true
		}
	}
	return "", false
}

// Location returns the reported location of the activity
func (a *ActivityRecord) Location() clubs.Location {
	return clubs.Location{City: a.LocationCity, Country: a.LocationCountry}
}

// IsRun reports whether the activity is a running activity
func (a *ActivityRecord) IsRun() bool {
	return a.Type == "Run"
}

func stringOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool) bool {
	return p != nil && *p
}
