package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// storingCache is an in-memory LeaderboardCache that records hits and misses
type storingCache struct {
	boards map[string][]types.MonthLeaderboard
	gets   int
	sets   int
}

func newStoringCache() *storingCache {
	return &storingCache{boards: make(map[string][]types.MonthLeaderboard)}
}

func (c *storingCache) key(slug string, year int) string {
	return slug + ":" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

func (c *storingCache) GetLeaderboard(ctx context.Context, clubSlug string, year int) ([]types.MonthLeaderboard, bool, error) {
	c.gets++
	board, ok := c.boards[c.key(clubSlug, year)]
	return board, ok, nil
}

func (c *storingCache) SetLeaderboard(ctx context.Context, clubSlug string, year int, board []types.MonthLeaderboard) error {
	c.sets++
	c.boards[c.key(clubSlug, year)] = board
	return nil
}

func (c *storingCache) InvalidateLeaderboards(ctx context.Context) error {
	c.boards = make(map[string][]types.MonthLeaderboard)
	return nil
}

func statsFixture(t *testing.T, cache LeaderboardCache) (*StatsService, *mockRunStore) {
	t.Helper()

	users := newMockUserStore(
		&models.User{ID: "alice", StravaID: 1, FirstName: "Alice"},
		&models.User{ID: "bob", StravaID: 2, FirstName: "Bob"},
	)

	runs := newMockRunStore()
	sunday := time.Date(2026, time.January, 4, 11, 0, 0, 0, time.UTC)
	for i, userID := range []string{"alice", "alice", "bob"} {
		run := &models.Run{
			ID:               userID + "-run",
			UserID:           userID,
			StravaActivityID: int64(9000 + i),
			Distance:         10000,
			MovingTime:       3000,
			StartDate:        sunday.AddDate(0, 0, 7*i),
			StartDateLocal:   sunday.AddDate(0, 0, 7*i),
			ClubName:         "Sunday Morning Club",
		}
		require.NoError(t, runs.Upsert(context.Background(), run))
	}

	return NewStatsService(users, runs, testRules(t), cache), runs
}

func TestClubLeaderboardComputesAndCaches(t *testing.T) {
	cache := newStoringCache()
	svc, _ := statsFixture(t, cache)
	ctx := context.Background()

	board, err := svc.ClubLeaderboard(ctx, "Sunday Morning Club", 2026, types.MonthAscending)
	require.NoError(t, err)
	require.NotEmpty(t, board)
	assert.Equal(t, "2026-01", board[0].Month)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache, no recompute
	again, err := svc.ClubLeaderboard(ctx, "Sunday Morning Club", 2026, types.MonthAscending)
	require.NoError(t, err)
	assert.Equal(t, board, again)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 2, cache.gets)
}

func TestClubLeaderboardOrderSharesCacheEntry(t *testing.T) {
	cache := newStoringCache()
	svc, runs := statsFixture(t, cache)
	ctx := context.Background()

	// Add a February run so there are two month blocks to order
	feb := time.Date(2026, time.February, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, runs.Upsert(ctx, &models.Run{
		ID: "alice-feb", UserID: "alice", StravaActivityID: 9100,
		Distance: 5000, MovingTime: 1500,
		StartDate: feb, StartDateLocal: feb,
		ClubName: "Sunday Morning Club",
	}))

	asc, err := svc.ClubLeaderboard(ctx, "Sunday Morning Club", 2026, types.MonthAscending)
	require.NoError(t, err)
	desc, err := svc.ClubLeaderboard(ctx, "Sunday Morning Club", 2026, types.MonthDescending)
	require.NoError(t, err)

	require.Len(t, asc, 2)
	assert.Equal(t, asc[0].Month, desc[1].Month)
	assert.Equal(t, asc[1].Month, desc[0].Month)
	assert.Equal(t, 1, cache.sets, "both orders share one cached entry")
}

func TestClubLeaderboardWithoutCache(t *testing.T) {
	svc, _ := statsFixture(t, nil)

	board, err := svc.ClubLeaderboard(context.Background(), "Sunday Morning Club", 2026, types.MonthAscending)
	require.NoError(t, err)
	assert.NotEmpty(t, board)
}

func TestUserClubsAndStreak(t *testing.T) {
	svc, _ := statsFixture(t, nil)
	ctx := context.Background()

	clubs, err := svc.UserClubs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sunday Morning Club"}, clubs)

	streak, err := svc.Streak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, streak) // runs a week apart never chain
}
