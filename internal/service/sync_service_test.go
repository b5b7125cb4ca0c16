package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strava-board/internal/clubs"
	apperrors "github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// Mock implementations for testing

type mockStravaAPI struct {
	activities   []json.RawMessage
	fetchErr     error
	lastAfter    time.Time
	refreshed    *types.TokenResponse
	refreshErr   error
	refreshCalls int
}

func (m *mockStravaAPI) AuthorizeURL(state string) string { return "https://example.test/authorize" }

func (m *mockStravaAPI) ExchangeCode(ctx context.Context, code string) (*types.TokenResponse, *types.Athlete, error) {
	return &types.TokenResponse{AccessToken: "fresh", RefreshToken: "refresh", ExpiresAt: time.Now().Add(6 * time.Hour).Unix()},
		&types.Athlete{ID: 42, FirstName: "Test", LastName: "Runner"}, nil
}

func (m *mockStravaAPI) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	if m.refreshed != nil {
		return m.refreshed, nil
	}
	return &types.TokenResponse{
		AccessToken:  "refreshed-token",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}, nil
}

func (m *mockStravaAPI) FetchAthlete(ctx context.Context, accessToken string) (*types.Athlete, error) {
	return &types.Athlete{ID: 42}, nil
}

func (m *mockStravaAPI) FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]json.RawMessage, error) {
	m.lastAfter = after
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.activities, nil
}

type mockUserStore struct {
	users      map[string]*models.User
	lastSynced map[string]time.Time
}

func newMockUserStore(users ...*models.User) *mockUserStore {
	m := &mockUserStore{users: make(map[string]*models.User), lastSynced: make(map[string]time.Time)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserStore) UpsertByStravaID(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, &types.ServiceError{Code: "USER_NOT_FOUND", Message: "user not found"}
}

func (m *mockUserStore) GetByStravaID(ctx context.Context, stravaID int64) (*models.User, error) {
	for _, u := range m.users {
		if u.StravaID == stravaID {
			return u, nil
		}
	}
	return nil, &types.ServiceError{Code: "USER_NOT_FOUND", Message: "user not found"}
}

func (m *mockUserStore) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockUserStore) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	u.AccessToken = accessToken
	u.RefreshToken = refreshToken
	u.TokenExpiry = expiry
	return nil
}

func (m *mockUserStore) UpdateLastSyncedAt(ctx context.Context, userID string, at time.Time) error {
	m.lastSynced[userID] = at
	return nil
}

// mockRunStore emulates the ON CONFLICT (user_id, strava_activity_id) upsert
type mockRunStore struct {
	runs      map[string]map[int64]*models.Run
	upsertErr error
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[string]map[int64]*models.Run)}
}

func (m *mockRunStore) Upsert(ctx context.Context, run *models.Run) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	byActivity, ok := m.runs[run.UserID]
	if !ok {
		byActivity = make(map[int64]*models.Run)
		m.runs[run.UserID] = byActivity
	}
	if existing, ok := byActivity[run.StravaActivityID]; ok {
		run.ID = existing.ID
		run.CreatedAt = existing.CreatedAt
	}
	byActivity[run.StravaActivityID] = run
	return nil
}

func (m *mockRunStore) ListByUser(ctx context.Context, userID string) ([]*models.Run, error) {
	var runs []*models.Run
	for _, r := range m.runs[userID] {
		runs = append(runs, r)
	}
	return runs, nil
}

func (m *mockRunStore) ListByUserAndClub(ctx context.Context, userID, clubName string) ([]*models.Run, error) {
	var runs []*models.Run
	for _, r := range m.runs[userID] {
		if r.ClubName == clubName {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

func (m *mockRunStore) ListByClubAndYear(ctx context.Context, clubName string, year int) ([]*models.Run, error) {
	var runs []*models.Run
	for _, byActivity := range m.runs {
		for _, r := range byActivity {
			if r.ClubName == clubName && r.StartDateLocal.Year() == year {
				runs = append(runs, r)
			}
		}
	}
	return runs, nil
}

func (m *mockRunStore) ReclassifyAll(ctx context.Context, rules clubs.RuleSet) (int, error) {
	changed := 0
	for _, byActivity := range m.runs {
		for _, r := range byActivity {
			newClub := ""
			loc := clubs.Location{City: r.LocationCity, Country: r.LocationCountry}
			if club, ok := clubs.Classify(r.StartDateLocal, loc, rules); ok {
				newClub = club
			}
			if newClub != r.ClubName {
				r.ClubName = newClub
				changed++
			}
		}
	}
	return changed, nil
}

func (m *mockRunStore) ReclassifyByUser(ctx context.Context, userID string, rules clubs.RuleSet) (int, error) {
	return m.ReclassifyAll(ctx, rules)
}

func (m *mockRunStore) count(userID string) int {
	return len(m.runs[userID])
}

type mockLeaderboardCache struct {
	invalidations int
}

func (m *mockLeaderboardCache) GetLeaderboard(ctx context.Context, clubSlug string, year int) ([]types.MonthLeaderboard, bool, error) {
	return nil, false, nil
}

func (m *mockLeaderboardCache) SetLeaderboard(ctx context.Context, clubSlug string, year int, board []types.MonthLeaderboard) error {
	return nil
}

func (m *mockLeaderboardCache) InvalidateLeaderboards(ctx context.Context) error {
	m.invalidations++
	return nil
}

// Test fixtures

func testRules(t *testing.T) clubs.RuleSet {
	t.Helper()
	rules, err := clubs.ParseRules([]byte(`[{
		"name": "Sunday Morning Club",
		"days": ["sunday"],
		"time_window": {"start": "10:30", "end": "12:30"}
	}]`))
	require.NoError(t, err)
	return rules
}

func activeUser() *models.User {
	return &models.User{
		ID:           "user-1",
		StravaID:     42,
		FirstName:    "Test",
		AccessToken:  "valid-token",
		RefreshToken: "refresh-token",
		TokenExpiry:  time.Now().Add(6 * time.Hour).UTC(),
	}
}

func activityJSON(t *testing.T, id int64, activityType, localStart string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":                   id,
		"name":                 "Workout",
		"distance":             10000.0,
		"moving_time":          3000,
		"elapsed_time":         3100,
		"total_elevation_gain": 50.0,
		"type":                 activityType,
		"start_date":           "2026-01-04T03:00:00Z",
		"start_date_local":     localStart,
		"timezone":             "(GMT+08:00) Asia/Singapore",
		"average_speed":        3.33,
		"max_speed":            4.5,
	})
	require.NoError(t, err)
	return raw
}

func newTestSyncService(client *mockStravaAPI, users *mockUserStore, runs *mockRunStore, rules clubs.RuleSet, cache LeaderboardCache) *SyncService {
	auth := NewAuthService(client, users)
	return NewSyncService(client, auth, users, runs, rules, cache)
}

// Tests

func TestSyncFiltersRidesAndClassifiesRuns(t *testing.T) {
	// 2026-01-04 is a Sunday; 11:00 local is inside the club window
	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
		activityJSON(t, 1002, "Ride", "2026-01-04T11:00:00Z"),
	}}
	users := newMockUserStore(activeUser())
	runs := newMockRunStore()

	svc := newTestSyncService(client, users, runs, testRules(t), nil)

	result, err := svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Skipped)

	stored, _ := runs.ListByUser(context.Background(), "user-1")
	require.Len(t, stored, 1)
	assert.Equal(t, int64(1001), stored[0].StravaActivityID)
	assert.Equal(t, "Sunday Morning Club", stored[0].ClubName)
}

func TestSyncIsIdempotent(t *testing.T) {
	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
		activityJSON(t, 1003, "Run", "2026-01-04T15:00:00Z"),
	}}
	users := newMockUserStore(activeUser())
	runs := newMockRunStore()

	svc := newTestSyncService(client, users, runs, testRules(t), nil)
	ctx := context.Background()
	user := users.users["user-1"]

	_, err := svc.Sync(ctx, user, time.Time{})
	require.NoError(t, err)
	first := runs.count("user-1")

	result, err := svc.Sync(ctx, user, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Upserted)
	assert.Equal(t, first, runs.count("user-1"), "second sync must not create new rows")
}

func TestSyncSkipsMalformedPayloads(t *testing.T) {
	broken := json.RawMessage(`{"id": 9, "type": "Run"}`)
	client := &mockStravaAPI{activities: []json.RawMessage{
		broken,
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
	}}
	users := newMockUserStore(activeUser())
	runs := newMockRunStore()

	svc := newTestSyncService(client, users, runs, testRules(t), nil)

	result, err := svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Skipped)
}

func TestSyncStorageFailureAborts(t *testing.T) {
	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
	}}
	users := newMockUserStore(activeUser())
	runs := newMockRunStore()
	runs.upsertErr = apperrors.NewStorageError("upsert run", fmt.Errorf("connection lost"))

	svc := newTestSyncService(client, users, runs, testRules(t), nil)

	_, err := svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.Error(t, err)
	assert.Equal(t, types.CodeStorageFailure, apperrors.Categorize(err).Code)
}

func TestSyncDefaultWindow(t *testing.T) {
	client := &mockStravaAPI{}
	users := newMockUserStore(activeUser())

	svc := newTestSyncService(client, users, newMockRunStore(), testRules(t), nil)

	_, err := svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.NoError(t, err)

	wantYear := time.Now().UTC().Year() - 1
	assert.Equal(t, time.Date(wantYear, time.January, 1, 0, 0, 0, 0, time.UTC), client.lastAfter)
}

func TestSyncRefreshesExpiredToken(t *testing.T) {
	user := activeUser()
	user.TokenExpiry = time.Now().Add(-time.Hour).UTC()

	client := &mockStravaAPI{}
	users := newMockUserStore(user)

	svc := newTestSyncService(client, users, newMockRunStore(), testRules(t), nil)

	_, err := svc.Sync(context.Background(), user, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, client.refreshCalls)
	assert.Equal(t, "refreshed-token", users.users["user-1"].AccessToken)
}

func TestSyncExpiredTokenWithoutRefresh(t *testing.T) {
	user := activeUser()
	user.TokenExpiry = time.Now().Add(-time.Hour).UTC()
	user.RefreshToken = ""

	client := &mockStravaAPI{}
	users := newMockUserStore(user)

	svc := newTestSyncService(client, users, newMockRunStore(), testRules(t), nil)

	_, err := svc.Sync(context.Background(), user, time.Time{})
	require.Error(t, err)
	assert.Equal(t, types.CodeTokenExpiredNoRefresh, apperrors.Categorize(err).Code)
	assert.Equal(t, 0, client.refreshCalls)
}

func TestSyncRefreshOutageKeepsUpstreamCode(t *testing.T) {
	user := activeUser()
	user.TokenExpiry = time.Now().Add(-time.Hour).UTC()

	client := &mockStravaAPI{
		refreshErr: apperrors.NewUpstreamUnavailableError("/oauth/token", nil),
	}
	users := newMockUserStore(user)

	svc := newTestSyncService(client, users, newMockRunStore(), testRules(t), nil)

	_, err := svc.Sync(context.Background(), user, time.Time{})
	require.Error(t, err)

	// The outage must stay distinguishable from an expired token or a
	// generic failure even after the service wraps the client error.
	catErr := apperrors.Categorize(err)
	assert.Equal(t, types.CodeUpstreamUnavailable, catErr.Code)
	assert.Equal(t, 502, catErr.StatusCode)
}

func TestSyncInvalidatesCacheOnChange(t *testing.T) {
	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
	}}
	users := newMockUserStore(activeUser())
	cache := &mockLeaderboardCache{}

	svc := newTestSyncService(client, users, newMockRunStore(), testRules(t), cache)

	_, err := svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidations)

	// Nothing fetched, nothing to invalidate
	client.activities = nil
	_, err = svc.Sync(context.Background(), users.users["user-1"], time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidations)
}

func TestSyncAllContinuesPastFailedUser(t *testing.T) {
	good := activeUser()
	bad := &models.User{
		ID:          "user-2",
		StravaID:    43,
		AccessToken: "token",
		TokenExpiry: time.Now().Add(-time.Hour).UTC(), // expired, no refresh token
	}

	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"),
	}}
	users := newMockUserStore(good, bad)
	runs := newMockRunStore()

	svc := newTestSyncService(client, users, runs, testRules(t), nil)

	total, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, total.Upserted)
	assert.Equal(t, 1, runs.count("user-1"))
	assert.Equal(t, 0, runs.count("user-2"))
}

func TestReclassifyAll(t *testing.T) {
	client := &mockStravaAPI{activities: []json.RawMessage{
		activityJSON(t, 1001, "Run", "2026-01-04T11:00:00Z"), // Sunday in window
		activityJSON(t, 1002, "Run", "2026-01-04T15:00:00Z"), // Sunday outside window
	}}
	users := newMockUserStore(activeUser())
	runs := newMockRunStore()
	cache := &mockLeaderboardCache{}

	svc := newTestSyncService(client, users, runs, testRules(t), cache)
	ctx := context.Background()

	_, err := svc.Sync(ctx, users.users["user-1"], time.Time{})
	require.NoError(t, err)

	// Same rules: nothing changes
	changed, err := svc.ReclassifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	// Widen the window: the 15:00 run now classifies
	wider, err := clubs.ParseRules([]byte(`[{
		"name": "Sunday Morning Club",
		"days": ["sunday"],
		"time_window": {"start": "10:30", "end": "16:00"}
	}]`))
	require.NoError(t, err)

	svc.rules = wider
	changed, err = svc.ReclassifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}
