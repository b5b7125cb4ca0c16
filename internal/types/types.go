// Package types provides common type definitions for the strava board system.
package types

// ActivityType represents the sport tag reported by Strava for an activity
type ActivityType string

const (
	// ActivityRun represents a running activity
	ActivityRun ActivityType = "Run"
	// ActivityRide represents a cycling activity
	ActivityRide ActivityType = "Ride"
)

// MonthOrder controls the direction month groups are returned in
type MonthOrder string

const (
	// MonthAscending orders months oldest first (raw listings)
	MonthAscending MonthOrder = "asc"
	// MonthDescending orders months most recent first (leaderboard display)
	MonthDescending MonthOrder = "desc"
)

// Common service error codes
const (
	// CodeMalformedPayload marks an activity payload missing a required field
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	// CodeUpstreamUnavailable marks a non-success response from the Strava API
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	// CodeTokenExpiredNoRefresh marks an expired token with no refresh token stored
	CodeTokenExpiredNoRefresh = "TOKEN_EXPIRED_NO_REFRESH"
	// CodeStorageFailure marks a persistence operation failure
	CodeStorageFailure = "STORAGE_FAILURE"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// SyncResult summarizes one sync invocation for a user
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// TokenResponse represents the response from the Strava OAuth token endpoint
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Athlete represents the authenticated athlete's profile
type Athlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Profile   string `json:"profile"`
}

// MonthLeaderboard holds one month's ranked leaderboard rows
type MonthLeaderboard struct {
	Month string           `json:"month"`
	Rows  []LeaderboardRow `json:"rows"`
}

// LeaderboardRow represents one user's aggregated performance for one month
type LeaderboardRow struct {
	UserID      string  `json:"userId"`
	UserName    string  `json:"userName"`
	Month       string  `json:"month"`
	RunCount    int     `json:"runCount"`
	RunDays     int     `json:"runDays"`
	TotalKm     float64 `json:"totalKm"`
	TotalTime   int     `json:"totalTime"` // moving time, seconds
	AveragePace float64 `json:"averagePace"`
}
