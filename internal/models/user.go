package models

import "time"

// User is an authenticated athlete. One row per Strava athlete id; a repeat
// OAuth dance for the same athlete refreshes the stored tokens and profile.
type User struct {
	ID           string    `json:"id"`
	StravaID     int64     `json:"stravaId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"` // UTC instant the access token expires
	LastSyncedAt time.Time `json:"lastSyncedAt,omitzero"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName returns the athlete's name for leaderboards and run listings
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// TokenExpired reports whether the access token has expired as of now.
// A small skew margin avoids using a token that dies mid-request.
func (u *User) TokenExpired() bool {
	return time.Now().UTC().After(u.TokenExpiry.Add(-30 * time.Second))
}

// HasRefreshToken reports whether a refresh token is stored for the user
func (u *User) HasRefreshToken() bool {
	return u.RefreshToken != ""
}
