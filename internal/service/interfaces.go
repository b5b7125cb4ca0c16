package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// StravaAPI is the slice of the Strava client the services depend on
type StravaAPI interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*types.TokenResponse, *types.Athlete, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	FetchAthlete(ctx context.Context, accessToken string) (*types.Athlete, error)
	FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]json.RawMessage, error)
}

// UserStore is the user persistence surface the services depend on
type UserStore interface {
	UpsertByStravaID(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByStravaID(ctx context.Context, stravaID int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error
	UpdateLastSyncedAt(ctx context.Context, userID string, at time.Time) error
}

// RunStore is the run persistence surface the services depend on
type RunStore interface {
	Upsert(ctx context.Context, run *models.Run) error
	ListByUser(ctx context.Context, userID string) ([]*models.Run, error)
	ListByUserAndClub(ctx context.Context, userID, clubName string) ([]*models.Run, error)
	ListByClubAndYear(ctx context.Context, clubName string, year int) ([]*models.Run, error)
	ReclassifyAll(ctx context.Context, rules clubs.RuleSet) (int, error)
	ReclassifyByUser(ctx context.Context, userID string, rules clubs.RuleSet) (int, error)
}

// LeaderboardCache is the cache surface for computed leaderboards. A nil
// cache is valid and means caching is disabled.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, clubSlug string, year int) ([]types.MonthLeaderboard, bool, error)
	SetLeaderboard(ctx context.Context, clubSlug string, year int, board []types.MonthLeaderboard) error
	InvalidateLeaderboards(ctx context.Context) error
}
